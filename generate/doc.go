// Package generate implements the pre-session generation stages: deriving a
// persona's test goals and the seed prompt that opens each conversation. Both
// generators share one retry scaffold with exponential backoff and extract
// their structured payloads from free-form model output.
package generate
