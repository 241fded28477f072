// Package mock provides test doubles for the collaborator interfaces in
// internal/types.
//
// Every mock has function fields for custom behavior and counts its calls.
// All of them are safe for concurrent use, since the batch orchestrator calls
// generators from several goroutines.
//
//	provider := mock.NewMockProvider(
//	    mock.Reply{Err: errors.New("429 too many requests")},
//	    mock.Reply{Text: `{"summary": [], "flashcards": [], "quiz": []}`},
//	)
//	client, _ := llm.NewClient(provider, nil, cfg, nil)
package mock
