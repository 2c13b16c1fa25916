// Package cache implements the two caching layers in front of the agent
// workflow.
//
// SemanticCache matches incoming queries against previously answered ones
// by embedding similarity, so rephrasings of an answered question skip the
// workflow entirely. ToolCache memoizes individual tool invocations by
// exact parameters.
//
// Both caches degrade gracefully: a failing backing store produces cache
// misses and skipped writes, never a request failure.
package cache
