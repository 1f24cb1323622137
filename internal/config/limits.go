package config

const (
	// MaxMessageLength bounds a single user message sent to the agent.
	// Longer inputs are almost always pasted documents that blow the context window.
	MaxMessageLength = 8000

	// MaxFavoriteQueryLength bounds a saved favorite query.
	MaxFavoriteQueryLength = 2000

	// FavoriteLabelLength is how much of the query becomes the default label.
	FavoriteLabelLength = 50

	// MaxQueryRows caps rows returned by the ad-hoc query tool.
	MaxQueryRows = 100

	// MaxConversationListing is how many conversations the listing returns.
	MaxConversationListing = 20
)
