package prompts

// The email and API handlers run two calls each: a tool-selection call
// with the system prompt below, then a schema extraction over the same
// message list.

const (
	// EmailSystemPrompt asks the model to call send_email_notification.
	EmailSystemPrompt = "Send a notification about the analysis done. You have to call the function send_email_notification."

	// APISystemPrompt asks the model to call call_API.
	APISystemPrompt = "Call a public API. 1. You have to call the function call_API. "

	emailUserPrefix = "Please send an email to email@notificacion.com explaing to the patient the analysis about the tests results, describe in a positive way the results and the plan to apply"
	apiUserPrefix   = "Call the API https://jsonplaceholder.typicode.com/posts, method POST and payload parameters in the description "
)

// EmailUserPrompt wraps the action description for the email handler.
func EmailUserPrompt(description string) string {
	return emailUserPrefix + description
}

// APIUserPrompt wraps the action description for the API handler.
func APIUserPrompt(description string) string {
	return apiUserPrefix + description
}
