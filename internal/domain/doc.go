// Package domain contains the core business entities, value objects, and
// domain logic of the application: projects' source documents and the
// generated outputs (mind maps, summaries, flashcard decks) built from them.
// It is independent of any specific infrastructure or delivery mechanism.
package domain
