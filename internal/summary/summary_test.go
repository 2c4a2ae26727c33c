package summary

import "testing"

func TestNewServiceRequiresEndpoint(t *testing.T) {
	_, err := NewService(Config{Model: "gpt-4"})
	if err == nil {
		t.Fatal("expected error when api endpoint is empty")
	}
}

func TestNewServiceRequiresModel(t *testing.T) {
	_, err := NewService(Config{APIEndpoint: "http://localhost:8081/v1"})
	if err == nil {
		t.Fatal("expected error when model is empty")
	}
}

func TestNewServiceUsesDefaultPromptWhenUnset(t *testing.T) {
	svc, err := NewService(Config{APIEndpoint: "http://localhost:8081/v1", Model: "gpt-4"})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if svc.prompt != defaultPrompt {
		t.Errorf("prompt = %q, want default prompt", svc.prompt)
	}
}
