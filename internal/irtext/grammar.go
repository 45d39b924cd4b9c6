// SPDX-License-Identifier: Apache-2.0
package irtext

// Module is the top-level parse tree: a sequence of extern declarations
// and function definitions (spec §6.1). Comments are elided by the
// lexer, so they never appear in the tree (this is a round-trip format
// for passes, not a source map back to the original text).
type Module struct {
	Items []*Item `@@*`
}

type Item struct {
	Extern *ExternDecl `  @@`
	Func   *FuncDef    `| @@`
}

// TypeRef is a type keyword with zero or more trailing '*' for pointer
// indirection, e.g. "i32", "i32*", "i32**".
type TypeRef struct {
	Base  string   `@("void"|"i1"|"i8"|"i16"|"i32"|"i64")`
	Stars []string `@"*"*`
}

type ParamDecl struct {
	Type *TypeRef `@@`
	Name string   `@Ident`
}

type ExternDecl struct {
	Keyword string       `@"extern"`
	RetType *TypeRef     `@@`
	Name    string       `@Ident`
	Params  []*ParamDecl `"(" (@@ ("," @@)*)? ")" ";"`
}

type FuncDef struct {
	RetType *TypeRef     `@@`
	Name    string       `@Ident`
	Params  []*ParamDecl `"(" (@@ ("," @@)*)? ")"`
	Blocks  []*BlockDef  `"{" @@* "}"`
}

type BlockDef struct {
	Label  string       `@Ident ":"`
	Instrs []*InstrLine `@@*`
}

type InstrLine struct {
	Result *string    `(@Ident "=")?`
	Body   *InstrBody `@@`
}

// ValueRef is any token that can appear as an instruction operand: a
// name bound by an earlier "name = ..." line or a parameter (Ident), a
// literal integer, or one of the four reserved constants.
type ValueRef struct {
	Kw    *string `  @("true"|"false"|"null"|"undef")`
	Ident *string `| @Ident`
	Lit   *string `| @Integer`
}

// InstrBody dispatches on the leading mnemonic; each alternative's
// literal token disambiguates it from the others in one token of
// lookahead.
type InstrBody struct {
	Unary   *UnaryInstr      `  @@`
	Binary  *BinaryInstr     `| @@`
	Cmp     *CompareInstr    `| @@`
	Load    *LoadInstr       `| @@`
	Store   *StoreInstr      `| @@`
	Call    *CallInstr       `| @@`
	Branch  *BranchInstr     `| @@`
	CondBr  *CondBranchInstr `| @@`
	Alloc   *StackAllocInstr `| @@`
	Ret     *RetInstr        `| @@`
	Offset  *OffsetInstr     `| @@`
	Cast    *CastInstr       `| @@`
	Select  *SelectInstr     `| @@`
	Phi     *PhiInstr        `| @@`
}

type UnaryInstr struct {
	Op   string    `@("neg"|"not")`
	Type *TypeRef  `@@`
	X    *ValueRef `@@`
}

type BinaryInstr struct {
	Op   string    `@("add"|"sub"|"mul"|"udiv"|"sdiv"|"umod"|"smod"|"shr"|"shl"|"sar"|"and"|"or"|"xor")`
	Type *TypeRef  `@@`
	LHS  *ValueRef `@@ ","`
	RHS  *ValueRef `@@`
}

type CompareInstr struct {
	Keyword string    `@"cmp"`
	Pred    string    `@("eq"|"ne"|"ugt"|"ugte"|"sgt"|"sgte"|"ult"|"ulte"|"slt"|"slte")`
	Type    *TypeRef  `@@`
	LHS     *ValueRef `@@ ","`
	RHS     *ValueRef `@@`
}

type LoadInstr struct {
	Keyword string    `@"load"`
	Type    *TypeRef  `@@`
	Ptr     *ValueRef `@@`
}

type StoreInstr struct {
	Keyword string    `@"store"`
	Type    *TypeRef  `@@`
	Ptr     *ValueRef `@@ ","`
	Val     *ValueRef `@@`
}

type CallArg struct {
	Type *TypeRef  `@@`
	Val  *ValueRef `@@`
}

type CallInstr struct {
	Keyword string     `@"call"`
	RetType *TypeRef   `@@`
	Callee  string     `@Ident`
	Args    []*CallArg `"(" (@@ ("," @@)*)? ")"`
}

type BranchInstr struct {
	Keyword string `@"branch"`
	Target  string `@Ident`
}

type CondBranchInstr struct {
	Keyword     string    `@"bcond"`
	Type        *TypeRef  `@@`
	Cond        *ValueRef `@@ ","`
	TrueTarget  string    `@Ident ","`
	FalseTarget string    `@Ident`
}

type StackAllocInstr struct {
	Keyword string   `@"stackalloc"`
	Type    *TypeRef `@@`
	Size    *string  `("," @Integer)?`
}

type RetTyped struct {
	Type *TypeRef  `@@`
	Val  *ValueRef `@@`
}

type RetInstr struct {
	Keyword string    `@"ret"`
	VoidKw  *string   `  @"void"`
	Typed   *RetTyped `| @@`
}

type OffsetInstr struct {
	Keyword string    `@"offset"`
	Type    *TypeRef  `@@`
	Base    *ValueRef `@@ ","`
	Index   *ValueRef `@@`
}

type CastInstr struct {
	Op      string    `@("zext"|"sext"|"trunc"|"bitcast")`
	SrcType *TypeRef  `@@`
	Val     *ValueRef `@@`
	ToKw    string    `@"to"`
	DstType *TypeRef  `@@`
}

type SelectInstr struct {
	Keyword string    `@"select"`
	Type    *TypeRef  `@@`
	Cond    *ValueRef `@@ ","`
	IfTrue  *ValueRef `@@ ","`
	IfFalse *ValueRef `@@`
}

type PhiIncoming struct {
	Block string    `@Ident ":"`
	Val   *ValueRef `@@`
}

type PhiInstr struct {
	Keyword  string         `@"phi"`
	Type     *TypeRef       `@@`
	Incoming []*PhiIncoming `"[" (@@ ("," @@)*)? "]"`
}
