// Copyright (c) CouncilFlow Authors.
// Licensed under the MIT License.

// Package conversation persists council dialogs across rounds.
//
// A Conversation is an ordered list of Rounds, each the durable projection
// of one council.Result: the question, the attributed Stage-1 answers, the
// raw Stage-2 reviews with their parsed rankings, and the chairman
// synthesis. Label mappings and aggregate rankings are round-scoped and
// never stored; both are rebuilt on demand from the stored Stage-1 order
// via [Round.LabelMapping] and [Round.AggregateRanking].
//
// Supported backends:
//   - Memory: for development and testing (default)
//   - File: single-node deployments, one JSON index file per store
//   - Redis: distributed deployments
//   - Database: long-term archive via GORM (postgres, mysql, sqlite)
//
// [Service] ties a store to a council engine: it loads the prior rounds as
// chat history, runs the round, appends the durable projection and titles
// new conversations.
package conversation
