// Package model defines the conversational-inference capability boundary.
// The pipeline consumes inference as an opaque request/response call with
// optional constrained (JSON Schema) output; speaker selection and
// termination prediction depend on structured responses. Provider adapters
// live in the anthropic and openai subpackages.
package model
