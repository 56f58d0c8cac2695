// Package prompts contains the LLM prompt templates used by the agent.
//
// Prompt text is Go code rather than config files because it is program
// logic: templates take the dynamic parts as arguments and tests pin the
// exact wording the routers and handlers depend on.
//
// Convention: each prompt category gets its own file (router.go,
// investigation.go, action.go, synthesis.go, creative.go) with exported
// constants for fixed instructions and functions for interpolated ones.
package prompts
