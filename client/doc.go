// Package client provides the shared, lazily initialized gateway client.
//
// The Client owns the gateway configuration and builds the transport chain
// on first use:
//
//   - SDK transport: the tier's model through openai-go
//   - Direct transport: the tier's candidate list over plain HTTP
//
// A missing API key does not prevent construction. It surfaces as
// [*ErrMissingAPIKey] on the first dispatch, and [Client.Configured] lets a
// health check report it without contacting the gateway.
//
// # Basic Usage
//
//	c := client.New(client.Config{
//	    APIKey:  os.Getenv("OPENROUTER_API_KEY"),
//	    Timeout: 30 * time.Second,
//	})
//
//	res, err := c.Complete(ctx, spl402.Request{
//	    Messages: prompt.Code("fibonacci function", "python"),
//	    Tier:     "premium",
//	})
//
// # Events
//
// Observe operations via an event channel:
//
//	events := make(chan client.Event, 100)
//	c := client.New(client.Config{
//	    APIKey: os.Getenv("OPENROUTER_API_KEY"),
//	    Events: events,
//	})
//
//	go func() {
//	    for e := range events {
//	        fmt.Printf("[%s] %s took %v\n", e.Type, e.Operation, e.Duration)
//	    }
//	}()
package client
