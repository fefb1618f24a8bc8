// Package gemini streams text from Google's Gemini API for the generation
// package.
package gemini
