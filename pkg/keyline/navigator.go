package keyline

// Navigator is the capability to send the user's agent to a URL. In a
// desktop CLI that means opening the system browser; in tests it is a
// recording stub. The SDK never navigates on its own: RedirectToAuthorization
// fails with *EnvironmentError when no Navigator is configured.
type Navigator interface {
	Navigate(url string) error
}

// NavigatorFunc adapts a plain function to the Navigator interface.
type NavigatorFunc func(url string) error

// Navigate calls f(url).
func (f NavigatorFunc) Navigate(url string) error { return f(url) }
