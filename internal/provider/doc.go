// Package provider holds the REST clients for the external speech and model
// services: Cartesia for synthesis, Deepgram for transcription and Gemini for
// chat completion. Each client sits behind a small interface so the service
// layer and tests can substitute stubs, and they all share one tuned
// http.Client. API keys are injected at construction and never logged.
package provider
