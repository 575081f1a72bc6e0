// Package spl402 holds the shared data model of a pay-per-request LLM API
// whose inference is delegated to a remote multi-provider gateway.
//
// An inbound request passes an external payment gate, reaches a capability
// handler, is turned into a message list by the prompt assembler and then
// handed to the dispatcher, which picks a model by pricing tier and calls the
// gateway:
//
//	req := spl402.Request{
//	    Messages:  prompt.Code("fibonacci function", "python"),
//	    Tier:      "premium",
//	    MaxTokens: prompt.CodeMaxTokens,
//	}
//	res, err := d.Execute(ctx, req)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Model, res.Content)
//
// # Packages
//
//   - [github.com/astrohackerx/spl402-OpenRouter/tier]: tier to model policy
//   - [github.com/astrohackerx/spl402-OpenRouter/prompt]: per-capability message assembly
//   - [github.com/astrohackerx/spl402-OpenRouter/fallback]: ordered candidate loop
//   - [github.com/astrohackerx/spl402-OpenRouter/dispatch]: transport chain and streaming
//   - [github.com/astrohackerx/spl402-OpenRouter/client]: lazily built gateway transports
//   - [github.com/astrohackerx/spl402-OpenRouter/httpapi]: capability endpoints
package spl402
