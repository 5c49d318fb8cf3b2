// ABOUTME: Package client documentation
// ABOUTME: Describes the gateway HTTP client used by cauldron-admin

// Package client is a Go client for the cauldron-gateway HTTP API.
//
// Lifecycle calls (Deploy, Stop, Execute, NewSession, RemoveSession) return
// the gateway's envelope even when the operation failed upstream; inspect
// Result.SuccessInd. Requests the gateway rejects outright come back as
// *APIError.
//
//	c := client.New("http://localhost:8000", client.WithToken(token))
//	env, err := c.Deploy(ctx, req)
//
// Chat returns a Stream that yields one frame per delta:
//
//	stream, err := c.Chat(ctx, orchestrator.ChatRequest{...})
//	defer stream.Close()
//	for stream.Next() {
//		fmt.Print(stream.Text())
//	}
//	err = stream.Err()
package client
