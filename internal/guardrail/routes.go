package guardrail

// OutOfScopeMessage is returned instead of an answer when a query does not
// match any route.
const OutOfScopeMessage = `I'm StreamFlix's Help Center assistant, and I can only help with StreamFlix-related questions.

Here are some things I can help you with:
- Account issues (password reset, subscription, profiles)
- Playback problems (buffering, quality, audio sync)
- Content questions (availability, downloads, parental controls)
- Device support (smart TVs, mobile apps, casting)
- Billing inquiries (charges, payment methods, refunds)

Please ask a question about StreamFlix, or visit help.streamflix.com for more options.`

const (
	StreamFlixRouteName      = "streamflix_support"
	DefaultDistanceThreshold = 0.5
)

// StreamFlixRoute is the built-in support route.
func StreamFlixRoute() Route {
	return Route{
		Name: StreamFlixRouteName,
		References: []string{
			// account
			"reset password", "forgot password", "change subscription plan",
			"cancel subscription", "update payment method", "create profile",
			"manage profiles", "two-factor authentication", "sign out of devices",
			"account settings", "login issues", "email change",
			// playback
			"video buffering", "playback quality", "audio sync", "subtitles",
			"video error", "streaming issues", "blurry video", "freezing",
			"captions not working", "audio language", "HD quality", "4K streaming",
			// content
			"movie not available", "show not available", "content region",
			"download offline", "parental controls", "continue watching",
			"watchlist", "recommendations", "new releases", "leaving soon",
			// devices
			"supported devices", "cast to TV", "app crash", "chromecast",
			"smart TV app", "roku", "fire stick", "apple tv", "mobile app",
			"browser streaming", "multiple devices",
			// billing
			"billing", "payment failed", "unexpected charge", "refund",
			"subscription cost", "plan pricing", "free trial", "invoice",
			// technical
			"internet speed", "contact support", "error code", "app update",
			"connection issues", "VPN", "network requirements",
		},
		DistanceThreshold: DefaultDistanceThreshold,
	}
}
