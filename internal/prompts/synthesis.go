package prompts

import "fmt"

// synthesisTemplate produces the user-facing answer. The format verb
// receives the investigation text followed by any action summary.
const synthesisTemplate = `
You are an agent who helps patients to explain medical concepts in a friendly and positive way. 
You have to summarize the below information and provide a clear and concise response to the user.

 %s

`

// summaryTemplate produces the short memory entry. Verbs: investigation,
// action.
const summaryTemplate = `You are an agent who helps patients analyze the results of their medical tests and explain, in a friendly and positive way, the results, a possible action plan, next steps, and healthy recommendations. 
You have to summary the information in short format, around 10 words to save the most important information for historical context.

Analysis_investigation: %s,
action_result = %s
confidence_score = Confidence score between 0 and 1

Return your response in this format:

1. Give the summary of information about the result of the analysis or investigation of the medical test results.
4. Give the information about what action applied, only the action any other detail.`

// SynthesisPrompt returns the system prompt for the long-form answer.
// Empty inputs are allowed; the model still produces an answer.
func SynthesisPrompt(investigation, action string) string {
	body := investigation
	if action != "" {
		if body != "" {
			body += "\n\n"
		}
		body += action
	}
	return fmt.Sprintf(synthesisTemplate, body)
}

// SummaryPrompt returns the system prompt for the memory summary.
func SummaryPrompt(investigation, action string) string {
	if investigation == "" {
		investigation = "None"
	}
	if action == "" {
		action = "None"
	}
	return fmt.Sprintf(summaryTemplate, investigation, action)
}
