// Copyright (c) CouncilFlow Authors.
// Licensed under the MIT License.

// Package council implements the three-stage deliberation engine.
//
// A round asks one question to every council model in parallel (Stage 1),
// has each surviving model review the anonymized answers and rank them
// (Stage 2), and asks a chairman model for a synthesized final answer over
// the de-anonymized material (Stage 3). Per-model failures never abort a
// round; only an all-failed Stage 1, label exhaustion, or a failed chairman
// call do.
//
// The entry point is [Engine.Run]. The engine is stateless between rounds
// and safe for concurrent use; each round is a single forward pass through
// [CollectAnswers], [AssignLabels], [CollectEvaluations], [Aggregate] and
// [Synthesize].
package council
