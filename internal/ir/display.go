// SPDX-License-Identifier: Apache-2.0
package ir

// AssignDisplayIndices walks fn in textual order and stamps every value
// that can appear as a "vN" in printed IR with a fresh, sequential
// display index: parameters first (in declaration order), then each
// instruction with a non-void result, block by block, entry first. The
// numbering is purely cosmetic — it does not participate in equality or
// hashing — and is recomputed by the printer before every print rather
// than kept incrementally up to date across edits.
func AssignDisplayIndices(fn *Function) {
	next := 0
	for _, p := range fn.Params() {
		p.SetDisplayIndex(next)
		next++
	}
	for _, b := range fn.Blocks() {
		for _, inst := range b.Instructions() {
			if HasResult(inst) {
				inst.SetDisplayIndex(next)
				next++
			}
		}
	}
}
