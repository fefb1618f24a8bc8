// Package generation defines the Generator boundary between the task
// orchestrator and language model backends, and provides LLMGenerator, which
// turns a raw text stream from any backend into typed generation events.
//
// Mind maps and node expansions are requested as newline-delimited JSON so
// nodes and edges can be emitted while the model is still writing. Summaries
// and flashcard decks stream token events and finish with a single complete
// event carrying the parsed payload.
package generation
