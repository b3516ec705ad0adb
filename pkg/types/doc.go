// Package types provides shared type definitions for the gustavo intent engine.
//
// # Conversation Turns
//
// A session history is an ordered slice of Turn values, each produced either by
// the user or by the bot:
//
//	history := []types.Turn{
//	    {Role: types.RoleUser, Text: "ciao"},
//	    {Role: types.RoleBot, Text: "Ciao!"},
//	}
//
// # Optional Tags
//
// Classification may or may not produce an intent. Tag makes the "no match"
// branch explicit instead of relying on an empty string:
//
//	if tag, ok := match.Tag.Get(); ok {
//	    reply = responses[tag]
//	} else {
//	    reply = fallback
//	}
//
// Tag encodes as a JSON string when present and as null when absent.
//
// # Chat Results
//
// ChatResult carries the raw confidence score. ChatResult.Response produces the
// wire form, with confidence rounded to two decimals.
//
// # Errors
//
// ErrConfiguration marks fatal startup problems (empty catalog, missing tags,
// misaligned index artifacts). Use errors.Is to detect it through wrapping.
package types
