// Package core defines the shared data model for the pipeline: conversation
// messages and transcripts, agent descriptors, per-phase state and the
// end-to-end process run record. Higher layers (conversation, pipeline)
// depend on core; core depends only on failure.
package core
