package agent

const messageHandlerTemplate = `# About {{agentName}}
{{bio}}
{{lore}}

# Knowledge
{{knowledge}}

# Available actions
{{actions}}

# Conversation
{{recentMessages}}

# Task
Write the next reply of {{agentName}} to {{senderName}}'s last message:
"{{currentMessage}}"

Pick the single action that fulfils the request from [{{actionNames}}] or NONE
when no action applies. Respond with a JSON markdown block:
` + "```json" + `
{
    "text": "<reply of {{agentName}}>",
    "action": "<action name or NONE>"
}
` + "```"
