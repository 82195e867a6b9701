/*
Package compiler is the ssa generation stage of the quill pipeline.

Upstream stages parse, typecheck and monomorphize program text into a
mono.Program tree. This stage (ssagen) lowers the tree into a control flow
graph in SSA form (ssa.Package). The downstream stage lowers that into
circuit constraints.
*/
package compiler
