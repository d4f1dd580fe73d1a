// Package prompts holds the text Beatrice sends to the model as her
// system prompt.
//
// Prompt text is Go code rather than a config file because it is program
// logic: the fact block is spliced in per turn and the exact wording is
// pinned by tests. Operators who want a different voice point
// persona_file at a Markdown file; see [LoadPersona].
package prompts
