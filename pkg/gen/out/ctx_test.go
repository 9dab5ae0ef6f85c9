package out

import (
	"testing"

	"github.com/alecthomas/repr"
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/diag"
)

func newCtx(t *testing.T) (*Ctx, *ast.TypeNav) {
	t.Helper()
	nav := ast.NewTypeNav(8)
	c := New(nav, &Labels{}, Options{})
	c.Begin(&Func{Name: "f", Global: true})
	return c, nav
}

func expectICE(t *testing.T, what string, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		if _, ok := r.(*diag.InternalError); !ok {
			t.Errorf("%s: want an internal error, got %s", what, repr.String(r))
		}
	}()
	f()
}

func TestLabelsAreUnique(t *testing.T) {
	var l Labels
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		name := l.New("loop")
		if seen[name] {
			t.Fatalf("label %s handed out twice", name)
		}
		seen[name] = true
	}
}

func TestRetainCounts(t *testing.T) {
	c, nav := newCtx(t)

	v := c.Const(3, nav.Int())
	if v.Retains() != 1 || !v.IsConst() {
		t.Fatalf("new constant: %s with %d retains", v, v.Retains())
	}
	c.Retain(v)
	if v.Retains() != 2 {
		t.Errorf("after retain: %d", v.Retains())
	}
	c.Consume(v)
	c.Consume(v)
	if v.Retains() != 0 {
		t.Errorf("after two releases: %d", v.Retains())
	}

	expectICE(t, "double release", func() { c.Consume(v) })
	expectICE(t, "retain after release", func() { c.Retain(v) })
}

func TestRegisterReturnsToPool(t *testing.T) {
	c, nav := newCtx(t)

	v := c.ToReg(c.Const(1, nav.Int()))
	if v.Loc != LocReg {
		t.Fatalf("ToReg: got %s", v)
	}
	r := v.Reg
	if c.owner[r] != v {
		t.Fatalf("%s is not owned by %s", r, v)
	}
	c.Consume(v)
	if c.owner[r] != nil {
		t.Errorf("%s still owned after the last release", r)
	}
	if w := c.ToReg(c.Const(2, nav.Int())); w.Reg != r {
		t.Errorf("freed register %s was not reused, got %s", r, w.Reg)
	}
}

func TestSpillOldest(t *testing.T) {
	c, nav := newCtx(t)

	var vals []*Value
	for i := 0; i <= len(intScratch); i++ {
		vals = append(vals, c.ToReg(c.Const(int64(i), nav.Int())))
	}
	if vals[0].Loc != LocRegSpilt {
		t.Errorf("oldest value should be spilt, got %s", vals[0])
	}
	for _, v := range vals[1:] {
		if v.Loc != LocReg {
			t.Errorf("%s should still be in a register", v)
		}
	}

	// the spill slot is released with its value
	c.Consume(vals[0])
	if len(c.freeSlots) != 1 {
		t.Errorf("free slots: %v", c.freeSlots)
	}
}

func TestAllocaAlignment(t *testing.T) {
	c, _ := newCtx(t)

	tests := []struct {
		size, align int64
		want        int64
	}{
		{4, 4, -4},
		{8, 8, -16},
		{1, 1, -17},
		{2, 0, -19},
		{16, 16, -48},
	}
	for _, tt := range tests {
		if got := c.Alloca(tt.size, tt.align); got != tt.want {
			t.Errorf("Alloca(%d, %d) = %d, want %d", tt.size, tt.align, got, tt.want)
		}
	}
	if fn := c.End(); fn.FrameSize != 48 {
		t.Errorf("frame size %d", fn.FrameSize)
	}
}

func TestConstantBranchIsJump(t *testing.T) {
	c, nav := newCtx(t)
	then, els := c.NewBlock("then"), c.NewBlock("else")

	entry := c.Current()
	c.Branch(c.Const(0, nav.Int()), then, els)
	if entry.Term != TermJmp || entry.Then != els {
		t.Errorf("got terminator %d to %v", entry.Term, entry.Then)
	}
	if !c.Terminated() {
		t.Errorf("block should be terminated")
	}
}

func TestCompareFeedsBranch(t *testing.T) {
	c, nav := newCtx(t)
	then, els := c.NewBlock("then"), c.NewBlock("else")

	a := c.ToReg(c.Const(5, nav.Prim(ast.Int, true)))
	cmp := c.Cmp(CmpLt, a, c.Const(7, nav.Int()), nav.Int())
	entry := c.Current()
	c.Branch(cmp, then, els)

	if entry.Term != TermBranch || entry.Then != then || entry.Else != els {
		t.Fatalf("got terminator %d", entry.Term)
	}
	if entry.Cond.Cmp != CmpLt || !entry.Cond.Unsigned {
		t.Errorf("condition: %s", repr.String(entry.Cond))
	}
	last := entry.Insns[len(entry.Insns)-1]
	if last.Op != ICmp {
		t.Errorf("last instruction: %s", repr.String(last))
	}
	if c.flag != nil {
		t.Errorf("flag still live after the branch")
	}
}

func TestOpReusesSoleOwner(t *testing.T) {
	c, nav := newCtx(t)
	long := nav.Prim(ast.Long, false)

	a := c.ToReg(c.Const(2, long))
	r := a.Reg
	sum := c.Op(OpAdd, a, c.Const(3, long), long)
	if sum != a || sum.Reg != r {
		t.Errorf("sole owner should be overwritten in place, got %s", sum)
	}

	b := c.ToReg(c.Const(2, long))
	c.Retain(b)
	diff := c.Op(OpSub, b, c.Const(1, long), long)
	if diff == b {
		t.Errorf("shared value was overwritten")
	}
	if b.Retains() != 1 {
		t.Errorf("shared operand: %d retains", b.Retains())
	}
}

func TestCodeAfterTransferIsDead(t *testing.T) {
	c, nav := newCtx(t)

	c.Ret(nil)
	v := c.ToReg(c.Const(1, nav.Int()))
	c.Consume(v)
	if n := len(c.Fn.Blocks); n != 2 {
		t.Fatalf("want entry and a dead block, got %d blocks", n)
	}
	if dead := c.Fn.Blocks[1]; len(dead.Insns) == 0 {
		t.Errorf("dead block is empty")
	}
}
