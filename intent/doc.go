// Package intent maps free-text utterances to structured commands.
//
// Utterances are tested against an ordered table of patterns; the first
// matching rule wins. Parameter extraction and confidence scoring are pure
// functions of the utterance.
package intent
