package prompts

// searchQueryPrefix narrows passage search to the medical corpus.
const searchQueryPrefix = "Check all the information about medical questions "

// InvestigationSystemPrompt restricts the investigation call to the
// retrieved context and asks it to decline when the context is
// insufficient.
const InvestigationSystemPrompt = "You are a helpful assistant that analyze medical test results from documents and give recommendations or next steps. Use only the information from the context to answer questions. If you're unsure or the context doesn't contain the relevant information, say so."

// SearchQuery builds the retrieval query for a user request.
func SearchQuery(query string) string {
	return searchQueryPrefix + query
}

// InvestigationUserPrompt pairs the request with the rendered context.
func InvestigationUserPrompt(results, context string) string {
	return "Find information related with " + results + " in the context" + context
}
