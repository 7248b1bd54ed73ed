// Package reddit talks to the Reddit OAuth API.
//
// TokenGate exchanges the long-lived refresh token for short-lived access
// tokens; Client lists subreddit posts and expands submission comments on top
// of it.
package reddit
