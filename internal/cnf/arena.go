package cnf

import (
	"fmt"
	"sort"

	"github.com/go-air/gini/z"
)

// Block is a contiguous run of variables sharing one semantic role.
type Block struct {
	Role  string
	First z.Var
	Size  int
}

// Var returns the i-th variable of the block.
func (b Block) Var(i int) z.Var {
	if i < 0 || i >= b.Size {
		panic(fmt.Sprintf("index %d out of range for block %q of size %d", i, b.Role, b.Size))
	}
	return b.First + z.Var(i)
}

// Last returns the final variable of the block.
func (b Block) Last() z.Var {
	return b.First + z.Var(b.Size) - 1
}

// Contains reports whether v was issued as part of b.
func (b Block) Contains(v z.Var) bool {
	return v >= b.First && v < b.First+z.Var(b.Size)
}

// Arena issues variables in role-tagged blocks. Callers only ever hold
// Block handles and never compute variable numbers themselves.
type Arena struct {
	next   z.Var
	blocks []Block
}

func NewArena() *Arena {
	return &Arena{next: 1}
}

// Alloc reserves size fresh variables under role.
func (a *Arena) Alloc(role string, size int) Block {
	if size < 0 {
		panic(fmt.Sprintf("negative block size %d for role %q", size, role))
	}
	b := Block{Role: role, First: a.next, Size: size}
	a.next += z.Var(size)
	if size > 0 {
		a.blocks = append(a.blocks, b)
	}
	return b
}

// Fresh reserves a single variable under role.
func (a *Arena) Fresh(role string) z.Var {
	return a.Alloc(role, 1).First
}

// NumVars returns the number of variables issued so far.
func (a *Arena) NumVars() int {
	return int(a.next) - 1
}

// Blocks returns the issued blocks in allocation order.
func (a *Arena) Blocks() []Block {
	return a.blocks
}

// RoleOf returns the role of the block that issued v.
func (a *Arena) RoleOf(v z.Var) string {
	i := sort.Search(len(a.blocks), func(i int) bool {
		return a.blocks[i].Last() >= v
	})
	if i < len(a.blocks) && a.blocks[i].Contains(v) {
		return a.blocks[i].Role
	}
	return ""
}
