// Package upstream issues outbound requests to the third-party services the
// relay depends on: the OpenRouter chat-completion API and the streamed.su
// metadata/image API. Each upstream is registered by name with a fixed base URL
// built from config; callers supply a path that is appended verbatim.
// Failures are reported as *Error values carrying a Kind so the HTTP layer can
// translate them into client-visible status codes without inspecting transport
// internals.
package upstream
