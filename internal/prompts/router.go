package prompts

// GeneralRouterPrompt classifies a top-level request into one of
// analyze_test_results, apply_action, response_question or other.
const GeneralRouterPrompt = "Determine if this is a request to response a question or analyze information or apply an action like schedule an appointment."

// ActionRouterPrompt classifies an action request into call_API,
// send_email_notification or other.
const ActionRouterPrompt = "Determine if this is a request to an email send notification by or call an API."
