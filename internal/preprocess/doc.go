// Package preprocess turns the flat stream of posted notifications into the
// ordered groups the persistent list renders.
//
// The pipeline runs three steps in a fixed order: Group buckets items by group
// identity, Summarize derives header text for platform-synthesized group
// summaries, Rank orders groups by the ranking snapshot. Process is pure: the
// same inputs always produce value-equal output and no state is retained
// between passes.
package preprocess
