package wire

import (
	"encoding/json"
	"errors"

	"taskd/internal/regfile"
)

// ErrNotArray is returned by ParseRecipe when the top-level JSON value
// isn't an array — spec.md §4.6: "Malformed recipe (top-level not an
// array): Connection closed without reply."
var ErrNotArray = errors.New("wire: recipe is not a JSON array")

// ParseRecipe decodes a recipe message into an instruction list. Per
// spec.md §4.2, an instruction with an unknown opcode or an ill-typed data
// object is silently dropped; the rest of the recipe still parses. Only a
// top-level shape mismatch (not an array at all) is a hard error.
func ParseRecipe(body []byte) ([]regfile.Instruction, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return nil, ErrNotArray
	}

	out := make([]regfile.Instruction, 0, len(elems))
	for _, e := range elems {
		var r rawInstruction
		if err := json.Unmarshal(e, &r); err != nil {
			continue
		}
		instr, ok := decodeInstruction(r)
		if !ok {
			continue
		}
		out = append(out, instr)
	}
	return out, nil
}

// decodeInstruction turns one {op,data} wire entry into a regfile
// Instruction. It reports ok=false for an unknown opcode or a data object
// whose fields don't match the shape the opcode requires (spec.md §6).
func decodeInstruction(r rawInstruction) (regfile.Instruction, bool) {
	op, ok := regfile.ParseOpcode(r.Op)
	if !ok {
		return regfile.Instruction{}, false
	}

	switch op {
	case regfile.OpLoadConst:
		var d struct {
			Dest  int             `json:"dest"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return regfile.Instruction{}, false
		}
		instr := regfile.Instruction{Op: op, Dest: d.Dest}
		var asInt int64
		if err := json.Unmarshal(d.Value, &asInt); err == nil {
			instr.ConstInt = asInt
			return instr, true
		}
		var asStr string
		if err := json.Unmarshal(d.Value, &asStr); err == nil {
			instr.ConstStr = asStr
			instr.HasConstStr = true
			return instr, true
		}
		return regfile.Instruction{}, false

	case regfile.OpFSCreate:
		var d struct {
			Dest int `json:"dest"`
			Path int `json:"path"`
			Type int `json:"type"`
		}
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return regfile.Instruction{}, false
		}
		return regfile.Instruction{Op: op, Dest: d.Dest, A: d.Path, B: d.Type}, true

	case regfile.OpFSDelete:
		var d struct {
			Dest int `json:"dest"`
			Path int `json:"path"`
		}
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return regfile.Instruction{}, false
		}
		return regfile.Instruction{Op: op, Dest: d.Dest, A: d.Path}, true

	case regfile.OpFSCopy:
		var d struct {
			Dest int `json:"dest"`
			Src  int `json:"src"`
			Dst  int `json:"dst"`
		}
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return regfile.Instruction{}, false
		}
		return regfile.Instruction{Op: op, Dest: d.Dest, A: d.Src, B: d.Dst}, true

	case regfile.OpFSMove:
		var d struct {
			Dest int `json:"dest"`
			Src  int `json:"src"`
			Dst  int `json:"dst"`
		}
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return regfile.Instruction{}, false
		}
		return regfile.Instruction{Op: op, Dest: d.Dest, A: d.Src, B: d.Dst}, true

	case regfile.OpFSWrite:
		var d struct {
			Dest    int `json:"dest"`
			Path    int `json:"path"`
			Content int `json:"content"`
			Mode    int `json:"mode"`
		}
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return regfile.Instruction{}, false
		}
		return regfile.Instruction{Op: op, Dest: d.Dest, A: d.Path, B: d.Content, C: d.Mode}, true

	case regfile.OpFSRead, regfile.OpFSUnpack, regfile.OpFSHash, regfile.OpFSList:
		var d struct {
			Dest    int `json:"dest"`
			Path    int `json:"path"`
			TarPath int `json:"tar_path"`
		}
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return regfile.Instruction{}, false
		}
		path := d.Path
		if op == regfile.OpFSUnpack {
			path = d.TarPath
		}
		return regfile.Instruction{Op: op, Dest: d.Dest, A: path}, true

	case regfile.OpEQ, regfile.OpAND, regfile.OpOR:
		var d struct {
			Dest int `json:"dest"`
			Lhs  int `json:"lhs"`
			Rhs  int `json:"rhs"`
		}
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return regfile.Instruction{}, false
		}
		return regfile.Instruction{Op: op, Dest: d.Dest, A: d.Lhs, B: d.Rhs}, true

	case regfile.OpNOT:
		var d struct {
			Dest int `json:"dest"`
			Src  int `json:"src"`
		}
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return regfile.Instruction{}, false
		}
		return regfile.Instruction{Op: op, Dest: d.Dest, A: d.Src}, true

	case regfile.OpIndexSelect:
		var d struct {
			Dest  int `json:"dest"`
			List  int `json:"list"`
			Index int `json:"index"`
		}
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return regfile.Instruction{}, false
		}
		return regfile.Instruction{Op: op, Dest: d.Dest, A: d.List, B: d.Index}, true

	case regfile.OpRandomRange:
		var d struct {
			Dest int `json:"dest"`
			Min  int `json:"min"`
			Max  int `json:"max"`
		}
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return regfile.Instruction{}, false
		}
		return regfile.Instruction{Op: op, Dest: d.Dest, A: d.Min, B: d.Max}, true

	case regfile.OpPathJoin:
		var d struct {
			Dest int `json:"dest"`
			Base int `json:"base"`
			Name int `json:"name"`
		}
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return regfile.Instruction{}, false
		}
		return regfile.Instruction{Op: op, Dest: d.Dest, A: d.Base, B: d.Name}, true

	case regfile.OpRandomWalk:
		var d struct {
			Dest  int `json:"dest"`
			Root  int `json:"root"`
			Depth int `json:"depth"`
		}
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return regfile.Instruction{}, false
		}
		return regfile.Instruction{Op: op, Dest: d.Dest, A: d.Root, B: d.Depth}, true

	case regfile.OpDirContains:
		var d struct {
			Dest int `json:"dest"`
			A    int `json:"a"`
			B    int `json:"b"`
		}
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return regfile.Instruction{}, false
		}
		return regfile.Instruction{Op: op, Dest: d.Dest, A: d.A, B: d.B}, true

	case regfile.OpRandSeed:
		var d struct {
			Seed int64 `json:"seed"`
		}
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return regfile.Instruction{}, false
		}
		return regfile.Instruction{Op: op, Inline: d.Seed}, true

	case regfile.OpReport:
		var d struct {
			Regs []int `json:"regs"`
		}
		if err := json.Unmarshal(r.Data, &d); err != nil || len(d.Regs) == 0 {
			return regfile.Instruction{}, false
		}
		return regfile.Instruction{Op: op, Regs: d.Regs}, true

	case regfile.OpReturn:
		var d struct {
			Value int64 `json:"value"`
		}
		if err := json.Unmarshal(r.Data, &d); err != nil {
			return regfile.Instruction{}, false
		}
		return regfile.Instruction{Op: op, Inline: d.Value}, true

	default:
		return regfile.Instruction{}, false
	}
}
