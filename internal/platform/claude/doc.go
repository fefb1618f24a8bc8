// Package claude streams text from Anthropic's Messages API for the
// generation package.
package claude
