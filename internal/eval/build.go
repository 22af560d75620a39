// Pattern-construction algorithm: builds one pattern.Node per
// ast.VariableDecl/ast.TypeExpr, grounded directly on
// original_source/source/lang/evaluator.cpp's createStructPattern /
// createUnionPattern / createArrayPattern / createBuiltInTypePattern /
// createCustomTypePattern family.
package eval

import (
	"fmt"

	"patternlang/internal/ast"
	"patternlang/internal/diag"
	"patternlang/internal/pattern"
)

// resolveEndian implements evaluator.cpp's three-tier cascade: a
// member's own be/le override wins; failing that, the enclosing
// struct/union instance's resolved override; failing that, the run's
// global default.
func (e *Evaluator) resolveEndian(override, enclosing ast.Endian) pattern.Endian {
	eff := override
	if eff == ast.EndianDefault {
		eff = enclosing
	}
	switch eff {
	case ast.EndianBig:
		return pattern.BigEndian
	case ast.EndianLittle:
		return pattern.LittleEndian
	default:
		return e.opts.DefaultEndian
	}
}

// childEndian folds a member's own override into the endian its
// children should treat as "enclosing", so the cascade stays resolved
// one level at a time instead of re-walking ancestors.
func childEndian(override, enclosing ast.Endian) ast.Endian {
	if override != ast.EndianDefault {
		return override
	}
	return enclosing
}

func declLoc(pos ast.Position) diag.Location {
	return diag.Location{File: pos.File, Line: pos.Line, Column: pos.Column}
}

// sourceEnd is the first absolute address past the end of the source,
// addr's own unit: Common.Offset and the evaluator's cursor are
// absolute addresses (BaseAddress-relative), while source.Source's
// ReadAt/WriteAt take a file-relative offset — readBytes bridges the
// two so build.go only ever deals in absolute addresses.
func (e *Evaluator) sourceEnd() uint64 { return e.src.BaseAddress() + e.src.Size() }

func (e *Evaluator) readBytes(addr uint64, buf []byte) error {
	return e.src.ReadAt(addr-e.src.BaseAddress(), buf)
}

// buildMember constructs the pattern for one struct/union member or
// top-level placed variable at offset, returning its size so the
// caller can advance its own cursor. siblings holds the patterns
// already built for earlier members of the same struct/union, used
// only for direct-sibling array-size lookup.
func (e *Evaluator) buildMember(v *ast.VariableDecl, offset uint64, siblings []pattern.Node, depth int, enclosing ast.Endian) (pattern.Node, uint64, error) {
	if err := e.checkLimits(depth); err != nil {
		return nil, 0, err
	}
	if err := e.opts.Tick(); err != nil {
		return nil, 0, err
	}

	typ := v.Type
	endian := e.resolveEndian(typ.Endian, enclosing)
	childEnc := childEndian(typ.Endian, enclosing)

	var (
		node pattern.Node
		size uint64
		err  error
	)
	switch {
	case typ.PointerTo != nil:
		node, size, err = e.buildPointer(v, offset, endian, siblings, depth, childEnc)
	case typ.IsArray:
		node, size, err = e.buildArray(v, offset, endian, siblings, depth, childEnc)
	default:
		node, size, err = e.buildTyped(typ, v.Name, offset, endian, siblings, depth, childEnc)
	}
	if err != nil {
		return nil, 0, err
	}
	if node != nil && len(v.Attributes) > 0 {
		if err := e.applyAttributes(node, v.Attributes, siblings); err != nil {
			return nil, 0, err
		}
	}
	return node, size, nil
}

// applyAttributes applies a member's `[[name(...)]]` annotations to its
// already-built pattern, matching evaluator.cpp's post-construction
// attribute pass (hidden/comment/color/format run once the pattern and
// its value are known, not while the member is still being sized).
func (e *Evaluator) applyAttributes(node pattern.Node, attrs []ast.Attribute, siblings []pattern.Node) error {
	c := node.Common()
	for _, a := range attrs {
		switch a.Name {
		case "hidden":
			c.Visibility = pattern.Hidden
		case "comment":
			if len(a.Args) == 0 {
				continue
			}
			val, err := e.evalConstExpr(a.Args[0], siblings)
			if err != nil {
				return err
			}
			c.Comment = val.displayString()
		case "color":
			if len(a.Args) == 0 {
				continue
			}
			val, err := e.evalConstExpr(a.Args[0], siblings)
			if err != nil {
				return err
			}
			c.Color = uint32(val.AsUint64())
		case "format":
			if err := e.applyFormatHook(node, a, siblings); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyFormatHook calls the function registered under the exact name given by a
// `[[format("fn")]]` attribute with the member's own value, storing its
// return value as the pattern's display comment — the original's
// custom-formatter hook, minus the UI layer that would otherwise show
// it beside the field.
func (e *Evaluator) applyFormatHook(node pattern.Node, a ast.Attribute, siblings []pattern.Node) error {
	if len(a.Args) == 0 {
		return nil
	}
	nameVal, err := e.evalConstExpr(a.Args[0], siblings)
	if err != nil {
		return err
	}
	fn, ok := e.funcs[nameVal.Str]
	if !ok {
		return diag.NewSub(diag.KindSemantic, diag.SubUndefinedSymbol,
			"format function "+nameVal.Str+" not defined", diag.Location{})
	}
	self, err := e.valueFromPattern(node)
	if err != nil {
		return err
	}
	result, err := e.callFunction(fn, []Value{self})
	if err != nil {
		return err
	}
	node.Common().Comment = result.displayString()
	return nil
}

// buildTyped constructs a single (non-array, non-pointer) element: a
// builtin scalar, or a struct/union/enum/bitfield member.
func (e *Evaluator) buildTyped(typ *ast.TypeExpr, name string, offset uint64, endian pattern.Endian, siblings []pattern.Node, depth int, childEnc ast.Endian) (pattern.Node, uint64, error) {
	loc := declLoc(typ.Position)
	resolved, def, isBuiltin, err := e.resolveType(typ, loc)
	if err != nil {
		return nil, 0, err
	}
	if isBuiltin {
		return e.buildBuiltin(resolved, name, offset, endian)
	}
	switch {
	case def.Struct != nil:
		return e.buildStruct(def.Struct, name, offset, depth, childEnc)
	case def.Union != nil:
		return e.buildUnion(def.Union, name, offset, depth, childEnc)
	case def.Enum != nil:
		return e.buildEnum(def.Enum, name, offset, endian, depth)
	case def.Bitfield != nil:
		return e.buildBitfield(def.Bitfield, name, offset, depth, endian)
	}
	return nil, 0, diag.New(diag.KindInternal, "type "+resolved+" resolved to nothing buildable", loc)
}

func (e *Evaluator) buildBuiltin(name, memberName string, offset uint64, endian pattern.Endian) (pattern.Node, uint64, error) {
	width := builtinWidth(name)
	if width == 0 {
		width = 1 // padding occupies one byte per element
	}
	common := pattern.Common{Name: memberName, TypeName: name, Offset: offset, Size: uint64(width), Endian: endian}
	if name != "padding" {
		if _, _, err := e.readUint(offset, width, endian); err != nil {
			common.OutOfBounds = true
		}
	}

	switch name {
	case "padding":
		return &pattern.Padding{Common: common}, uint64(width), nil
	case "bool":
		return &pattern.Boolean{Common: common}, uint64(width), nil
	case "char":
		return &pattern.Character{Common: common, Width: 1}, uint64(width), nil
	case "char16":
		return &pattern.Character{Common: common, Width: 2}, uint64(width), nil
	case "float", "double":
		return &pattern.Float{Common: common, Width: width}, uint64(width), nil
	case "str":
		return e.buildCString(memberName, offset, endian)
	}

	if name[0] == 'u' {
		return &pattern.Unsigned{Common: common, Width: width}, uint64(width), nil
	}
	return &pattern.Signed{Common: common, Width: width}, uint64(width), nil
}

// buildCString reads bytes from offset until a NUL terminator or the
// end of the source, whichever comes first.
func (e *Evaluator) buildCString(memberName string, offset uint64, endian pattern.Endian) (pattern.Node, uint64, error) {
	const chunk = 256
	buf := make([]byte, 0, chunk)
	pos := offset
	for pos < e.sourceEnd() {
		window := make([]byte, 1)
		if err := e.readBytes(pos, window); err != nil {
			break
		}
		if window[0] == 0 {
			pos++
			break
		}
		buf = append(buf, window[0])
		pos++
	}
	size := pos - offset
	return &pattern.StringPattern{Common: pattern.Common{
		Name: memberName, TypeName: "str", Offset: offset, Size: size, Endian: endian,
	}}, size, nil
}

// readUint reads width bytes at offset and interprets them as an
// unsigned integer of that width, honoring endian. For widths above 8
// the low 8 bytes fill lo and the remaining high-order bytes fill hi;
// the runtime only needs the full 128 bits for round-tripping
// u128/s128 member values, not for arithmetic on them.
func (e *Evaluator) readUint(offset uint64, width int, endian pattern.Endian) (hi, lo uint64, err error) {
	buf := make([]byte, width)
	if rerr := e.readBytes(offset, buf); rerr != nil {
		return 0, 0, rerr
	}
	// at(p) returns the byte at logical position p, counting from the
	// most significant end, regardless of the buffer's wire endianness.
	at := func(p int) byte {
		if endian == pattern.BigEndian {
			return buf[p]
		}
		return buf[width-1-p]
	}
	loStart := width - 8
	if loStart < 0 {
		loStart = 0
	}
	for p := loStart; p < width; p++ {
		lo = lo<<8 | uint64(at(p))
	}
	for p := 0; p < loStart; p++ {
		hi = hi<<8 | uint64(at(p))
	}
	return hi, lo, nil
}

// ---- struct / union ---------------------------------------------------

func (e *Evaluator) buildStruct(decl *ast.StructDecl, name string, offset uint64, depth int, enclosing ast.Endian) (pattern.Node, uint64, error) {
	s := &pattern.Struct{Common: pattern.Common{Name: name, TypeName: decl.Name, Offset: offset}}
	e.pushThis(s)
	defer e.popThis()
	var structSize uint64
	var built []pattern.Node

	for _, m := range decl.Members {
		if err := e.opts.Tick(); err != nil {
			return nil, 0, err
		}
		memberOffset := offset + structSize
		if m.PlacementAddr != nil {
			addr, err := e.evalConstExpr(m.PlacementAddr, built)
			if err != nil {
				return nil, 0, err
			}
			memberOffset = addr.AsUint64()
		}
		child, size, err := e.buildMemberWithSiblings(m, memberOffset, built, depth+1, enclosing)
		if err != nil {
			return nil, 0, err
		}
		if child == nil {
			// a zero-length array by direct-sibling count: skip the
			// member entirely, contributing no size and no child and
			// raising no error; no empty Array pattern is produced.
			continue
		}
		child.Common().Parent = s
		built = append(built, child)
		if m.PlacementAddr == nil {
			structSize += size
		} else if memberOffset+size > offset+structSize {
			structSize = memberOffset + size - offset
		}
	}

	s.Children = built
	s.Size = structSize
	return s, structSize, nil
}

func (e *Evaluator) buildUnion(decl *ast.UnionDecl, name string, offset uint64, depth int, enclosing ast.Endian) (pattern.Node, uint64, error) {
	u := &pattern.Union{Common: pattern.Common{Name: name, TypeName: decl.Name, Offset: offset}}
	e.pushThis(u)
	defer e.popThis()
	var unionSize uint64
	var built []pattern.Node

	for _, m := range decl.Members {
		if err := e.opts.Tick(); err != nil {
			return nil, 0, err
		}
		child, size, err := e.buildMemberWithSiblings(m, offset, built, depth+1, enclosing)
		if err != nil {
			return nil, 0, err
		}
		if child == nil {
			continue
		}
		child.Common().Parent = u
		built = append(built, child)
		if size > unionSize {
			unionSize = size
		}
	}

	u.Children = built
	u.Size = unionSize
	return u, unionSize, nil
}

// buildMemberWithSiblings is buildMember plus the direct-sibling
// array-size resolution wired in; struct/union construction always
// goes through this entry point so `siblings` only ever reaches one
// level deep, matching the "direct siblings only" binding decision.
func (e *Evaluator) buildMemberWithSiblings(m *ast.VariableDecl, offset uint64, siblings []pattern.Node, depth int, enclosing ast.Endian) (pattern.Node, uint64, error) {
	if m.Type.IsArray && m.Type.ArraySize != nil {
		if isIdentifierSiblingLookup(m.Type.ArraySize) {
			count, ok, err := e.resolveArraySizeBySibling(m.Type.ArraySize, siblings)
			if err != nil {
				return nil, 0, err
			}
			if ok && count == 0 {
				return nil, 0, nil
			}
		}
	}
	return e.buildMember(m, offset, siblings, depth, enclosing)
}

func isIdentifierSiblingLookup(e ast.Expr) bool {
	_, ok := e.(*ast.Identifier)
	return ok
}

// resolveArraySizeBySibling looks up expr's identifier among the
// already-built direct siblings and decodes its scalar value, the way
// evaluator.cpp's getArraySizeVariable does.
func (e *Evaluator) resolveArraySizeBySibling(expr ast.Expr, siblings []pattern.Node) (uint64, bool, error) {
	id, ok := expr.(*ast.Identifier)
	if !ok {
		return 0, false, nil
	}
	sib, found := findSibling(siblings, id.Name)
	if !found {
		return 0, false, nil
	}
	val, err := e.valueFromPattern(sib)
	if err != nil {
		return 0, false, err
	}
	return val.AsUint64(), true, nil
}

// ---- arrays -------------------------------------------------------------

func (e *Evaluator) buildArray(v *ast.VariableDecl, offset uint64, endian pattern.Endian, siblings []pattern.Node, depth int, childEnc ast.Endian) (pattern.Node, uint64, error) {
	elemTypeExpr := &ast.TypeExpr{Position: v.Type.Position, Name: v.Type.Name, Path: v.Type.Path, Endian: v.Type.Endian}
	loc := declLoc(v.Type.Position)
	resolvedName, _, isBuiltin, err := e.resolveType(elemTypeExpr, loc)
	if err != nil {
		return nil, 0, err
	}

	var count uint64
	switch {
	case v.Type.ArraySize == nil:
		// no explicit size: consume the remainder of the source.
		elemSize := e.elementSizeHint(elemTypeExpr, resolvedName, isBuiltin)
		if elemSize == 0 {
			elemSize = 1
		}
		if offset >= e.sourceEnd() {
			count = 0
		} else {
			count = (e.sourceEnd() - offset) / elemSize
		}
	default:
		if isIdentifierSiblingLookup(v.Type.ArraySize) {
			n, ok, rerr := e.resolveArraySizeBySibling(v.Type.ArraySize, siblings)
			if rerr != nil {
				return nil, 0, rerr
			}
			if ok {
				count = n
				break
			}
		}
		val, rerr := e.evalConstExpr(v.Type.ArraySize, siblings)
		if rerr != nil {
			return nil, 0, rerr
		}
		count = val.AsUint64()
	}

	if count == 0 {
		return nil, 0, nil
	}

	// string detection: s8[N>1] (after alias resolution) is text, not
	// an array of one-byte integers.
	if isBuiltin && resolvedName == "s8" && count > 1 {
		size := count
		if offset+size > e.sourceEnd() {
			size = e.sourceEnd() - offset
		}
		buf := make([]byte, size)
		e.readBytes(offset, buf)
		return &pattern.StringPattern{Common: pattern.Common{
			Name: v.Name, TypeName: "s8", Offset: offset, Size: size, Endian: endian,
		}}, size, nil
	}

	arr := &pattern.Array{Common: pattern.Common{Name: v.Name, Offset: offset, Endian: endian},
		ElementType: resolvedName}
	var cursor = offset
	var elementColor uint32
	for i := uint64(0); i < count; i++ {
		if err := e.opts.Tick(); err != nil {
			return nil, 0, err
		}
		elemDecl := &ast.VariableDecl{Position: v.Position, Name: fmt.Sprintf("[%d]", i), Type: elemTypeExpr}
		child, size, err := e.buildMember(elemDecl, cursor, nil, depth+1, childEnc)
		if err != nil {
			return nil, 0, err
		}
		if i == 0 {
			elementColor = child.Common().Color
		} else {
			child.Common().Color = elementColor
		}
		child.Common().Parent = arr
		arr.Children = append(arr.Children, child)
		if i == 0 {
			arr.Stride = size
		}
		cursor += size
	}
	arr.Size = cursor - offset
	arr.TypeName = resolvedName
	return arr, arr.Size, nil
}

// elementSizeHint returns a fixed per-element byte size when the
// element type has one, used only to size an unsized trailing array.
func (e *Evaluator) elementSizeHint(typ *ast.TypeExpr, resolvedName string, isBuiltin bool) uint64 {
	if isBuiltin {
		w := builtinWidth(resolvedName)
		if w == 0 {
			return 1
		}
		return uint64(w)
	}
	return 0
}

// ---- enum / bitfield ------------------------------------------------

func (e *Evaluator) buildEnum(decl *ast.EnumDecl, name string, offset uint64, endian pattern.Endian, depth int) (pattern.Node, uint64, error) {
	loc := declLoc(decl.Position)
	underlyingName, _, ok, err := e.resolveType(decl.Underlying, loc)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, diag.NewSub(diag.KindSemantic, diag.SubUnknownType,
			"enum underlying type must be a builtin integer type", loc)
	}
	width := builtinWidth(underlyingName)
	hi, lo, rerr := e.readUint(offset, width, endian)
	var oob bool
	if rerr != nil {
		oob = true
	}

	en := &pattern.Enum{
		Common:     pattern.Common{Name: name, TypeName: decl.Name, Offset: offset, Size: uint64(width), Endian: endian, OutOfBounds: oob},
		Underlying: underlyingName, Hi: hi, Lo: lo,
	}
	prevLo := uint64(0)
	prevSet := false
	for _, v := range decl.Values {
		var valHi, valLo uint64
		if v.Value != nil {
			val, verr := e.evalConstExpr(v.Value, nil)
			if verr != nil {
				return nil, 0, verr
			}
			valLo = val.AsUint64()
		} else if prevSet {
			valLo = prevLo + 1
		}
		en.Values = append(en.Values, pattern.EnumEntry{Name: v.Name, Hi: valHi, Lo: valLo})
		prevLo, prevSet = valLo, true
	}
	return en, uint64(width), nil
}

func (e *Evaluator) buildBitfield(decl *ast.BitfieldDecl, name string, offset uint64, depth int, endian pattern.Endian) (pattern.Node, uint64, error) {
	bf := &pattern.Bitfield{Common: pattern.Common{Name: name, TypeName: decl.Name, Offset: offset, Endian: endian}}
	totalBits := 0
	var widths []int
	for _, f := range decl.Fields {
		val, err := e.evalConstExpr(f.Width, nil)
		if err != nil {
			return nil, 0, err
		}
		w := int(val.AsInt64())
		widths = append(widths, w)
		totalBits += w
	}
	size := pattern.BitfieldByteSize(totalBits)

	buf := make([]byte, size)
	if err := e.readBytes(offset, buf); err != nil {
		bf.OutOfBounds = true
	}
	// the bit-extraction loop below walks buf least-significant-byte
	// first; a be bitfield's window is stored most-significant-byte
	// first, so reverse it before extracting, matching evaluator.cpp's
	// "apply the declared endianness to the byte window" step.
	if endian == pattern.BigEndian {
		for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
			buf[i], buf[j] = buf[j], buf[i]
		}
	}
	var whole uint64
	for i := len(buf) - 1; i >= 0; i-- {
		whole = whole<<8 | uint64(buf[i])
	}

	bitOffset := 0
	for i, f := range decl.Fields {
		w := widths[i]
		mask := uint64(1)<<uint(w) - 1
		value := (whole >> uint(bitOffset)) & mask
		bf.Fields = append(bf.Fields, pattern.BitfieldEntry{Name: f.Name, BitOffset: bitOffset, BitWidth: w, Value: value})
		bitOffset += w
	}
	bf.Size = size
	return bf, size, nil
}

// ---- pointer ----------------------------------------------------------

func (e *Evaluator) buildPointer(v *ast.VariableDecl, offset uint64, endian pattern.Endian, siblings []pattern.Node, depth int, childEnc ast.Endian) (pattern.Node, uint64, error) {
	loc := declLoc(v.Type.Position)
	sizeTypeName, _, ok, err := e.resolveType(&ast.TypeExpr{Name: v.Type.Name}, loc)
	if err != nil {
		return nil, 0, err
	}
	width := builtinWidth(sizeTypeName)
	if !ok || width == 0 {
		width = 8
	}
	_, lo, rerr := e.readUint(offset, width, endian)
	p := &pattern.Pointer{
		Common:       pattern.Common{Name: v.Name, TypeName: v.Type.PointerTo.Name, Offset: offset, Size: uint64(width), Endian: endian},
		PointerWidth: width,
	}
	if rerr != nil {
		p.OutOfBounds = true
		return p, uint64(width), nil
	}

	pointeeOffset := e.src.BaseAddress() + lo
	pointeeDecl := &ast.VariableDecl{Position: v.Position, Name: v.Name, Type: v.Type.PointerTo}
	pointee, _, perr := e.buildMember(pointeeDecl, pointeeOffset, siblings, depth+1, childEnc)
	if perr != nil {
		return nil, 0, perr
	}
	pointee.Common().Parent = p
	p.Pointee = pointee
	return p, uint64(width), nil
}
