package chat

import "fmt"

const exampleDisplayName = "Bob"

func WelcomeNotice() Envelope {
	return NewServerNotice(fmt.Sprintf(
		"Welcome! Please send your desired username as your first message (e.g., %s).",
		exampleDisplayName))
}

func InvalidDisplayNameNotice(name string) Envelope {
	return NewServerNotice(fmt.Sprintf(
		"Invalid username: '%s'. Must not be empty, '%s', or too long (max %d chars).",
		name, ServerName, MaxDisplayNameLength))
}

func RegisteredNotice(name string) Envelope {
	return NewServerNotice(fmt.Sprintf("Username set to: %s. You can now send messages.", name))
}

func MalformedPayloadNotice() Envelope {
	return NewServerNotice(`Error: Could not understand your message. Expected JSON like {"content": "your text"}.`)
}
