package parser

import (
	"github.com/kartiknair/mycc/pkg/ast"
	"github.com/kartiknair/mycc/pkg/config"
	"github.com/kartiknair/mycc/pkg/token"
)

type declSpec struct {
	storage  ast.StorageClass
	typ      ast.Type
	inline   bool
	attrs    []*ast.Attribute
	implicit bool
	pos      token.Pos
}

func (p *Parser) isTypedefName(tok token.Token) bool {
	if tok.Type != token.IDENTIFIER {
		return false
	}
	d, _ := p.scope.Lookup(tok.Lexeme)
	return d != nil && d.IsTypedef()
}

func (p *Parser) isTypeStart(tok token.Token) bool {
	switch tok.Type {
	case token.VOID, token.BOOL, token.CHAR_KW, token.SHORT, token.INT_KW,
		token.LONG, token.FLOAT_KW, token.DOUBLE, token.SIGNED, token.UNSIGNED,
		token.STRUCT, token.UNION, token.ENUM, token.CONST, token.VOLATILE:
		return true
	}
	return p.isTypedefName(tok)
}

func (p *Parser) isDeclStart(tok token.Token) bool {
	switch tok.Type {
	case token.TYPEDEF, token.EXTERN, token.STATIC, token.AUTO, token.REGISTER,
		token.INLINE, token.NORETURN, token.ATTRIBUTE:
		return true
	}
	return p.isTypeStart(tok)
}

// parseDeclSpecifiers reads storage classes, qualifiers and type specifiers.
// When no type specifier is present the type defaults to int and
// spec.implicit is set.
func (p *Parser) parseDeclSpecifiers(allowStorage bool) *declSpec {
	spec := &declSpec{pos: p.peek(0).Pos}

	var qual ast.Qualifier
	var nVoid, nBool, nChar, nShort, nInt, nLong int
	var nFloat, nDouble, nSigned, nUnsigned int
	var named ast.Type
	seenType := false

	setStorage := func(tok token.Token, s ast.StorageClass) {
		if !allowStorage {
			p.errorf(tok.Pos, "storage class '%s' not allowed here", tok.Lexeme)
			return
		}
		if spec.storage != ast.StorageNone {
			p.errorf(tok.Pos, "multiple storage classes in declaration")
			return
		}
		spec.storage = s
	}

loop:
	for {
		tok := p.peek(0)
		switch tok.Type {
		case token.TYPEDEF:
			setStorage(tok, ast.StorageTypedef)
		case token.EXTERN:
			setStorage(tok, ast.StorageExtern)
		case token.STATIC:
			setStorage(tok, ast.StorageStatic)
		case token.AUTO:
			setStorage(tok, ast.StorageAuto)
		case token.REGISTER:
			setStorage(tok, ast.StorageRegister)
		case token.INLINE:
			spec.inline = true
		case token.NORETURN:
			spec.attrs = append(spec.attrs, &ast.Attribute{Kind: ast.AttrNoreturn, Pos: tok.Pos})
		case token.ATTRIBUTE:
			spec.attrs = append(spec.attrs, p.parseAttributes()...)
			continue
		case token.CONST:
			qual |= ast.QualConst
		case token.VOLATILE:
			qual |= ast.QualVolatile
		case token.VOID:
			nVoid++
		case token.BOOL:
			nBool++
		case token.CHAR_KW:
			nChar++
		case token.SHORT:
			nShort++
		case token.INT_KW:
			nInt++
		case token.LONG:
			nLong++
		case token.FLOAT_KW:
			nFloat++
		case token.DOUBLE:
			nDouble++
		case token.SIGNED:
			nSigned++
		case token.UNSIGNED:
			nUnsigned++
		case token.STRUCT, token.UNION:
			if seenType {
				p.parseError(tok, "two or more data types in declaration specifiers")
			}
			named = p.parseRecord()
			seenType = true
			continue
		case token.ENUM:
			if seenType {
				p.parseError(tok, "two or more data types in declaration specifiers")
			}
			named = p.parseEnum()
			seenType = true
			continue
		case token.IDENTIFIER:
			if seenType || !p.isTypedefName(tok) {
				break loop
			}
			d, _ := p.scope.Lookup(tok.Lexeme)
			named = d.Type
			seenType = true
		default:
			break loop
		}

		switch tok.Type {
		case token.VOID, token.BOOL, token.CHAR_KW, token.SHORT, token.INT_KW,
			token.LONG, token.FLOAT_KW, token.DOUBLE, token.SIGNED, token.UNSIGNED:
			if named != nil {
				p.parseError(tok, "two or more data types in declaration specifiers")
			}
			seenType = true
		}
		p.advance()
	}

	switch {
	case named != nil:
		spec.typ = named
	case !seenType:
		spec.implicit = true
		spec.typ = p.nav.Int()
	default:
		spec.typ = p.primitiveFromCounts(spec.pos, nVoid, nBool, nChar, nShort, nInt, nLong, nFloat, nDouble, nSigned, nUnsigned)
	}

	if qual != 0 {
		spec.typ = spec.typ.WithQualifiers(spec.typ.Qualifiers() | qual)
	}
	return spec
}

func (p *Parser) primitiveFromCounts(pos token.Pos, nVoid, nBool, nChar, nShort, nInt, nLong, nFloat, nDouble, nSigned, nUnsigned int) ast.Type {
	unsigned := nUnsigned > 0
	if nSigned > 0 && nUnsigned > 0 {
		p.errorf(pos, "both 'signed' and 'unsigned' in declaration specifiers")
	}

	bad := func() ast.Type {
		p.errorf(pos, "invalid combination of type specifiers")
		return p.nav.Int()
	}

	sign := nSigned + nUnsigned
	switch {
	case nVoid > 0:
		if nVoid+nBool+nChar+nShort+nInt+nLong+nFloat+nDouble+sign > 1 {
			return bad()
		}
		return p.nav.Void()
	case nBool > 0:
		if nBool+nChar+nShort+nInt+nLong+nFloat+nDouble+sign > 1 {
			return bad()
		}
		return p.nav.Prim(ast.Bool, true)
	case nFloat > 0:
		if nFloat+nChar+nShort+nInt+nLong+nDouble+sign > 1 {
			return bad()
		}
		return p.nav.Prim(ast.Float, false)
	case nDouble > 0:
		if nDouble > 1 || nChar+nShort+nInt+sign > 0 || nLong > 1 {
			return bad()
		}
		if nLong == 1 {
			return p.nav.Prim(ast.LongDouble, false)
		}
		return p.nav.Prim(ast.Double, false)
	case nChar > 0:
		if nChar > 1 || nShort+nInt+nLong > 0 {
			return bad()
		}
		return p.nav.Prim(ast.Char, unsigned)
	case nShort > 0:
		if nShort > 1 || nLong > 0 || nInt > 1 {
			return bad()
		}
		return p.nav.Prim(ast.Short, unsigned)
	case nLong > 0:
		if nLong > 2 || nInt > 1 {
			return bad()
		}
		if nLong == 2 {
			return p.nav.Prim(ast.LongLong, unsigned)
		}
		return p.nav.Prim(ast.Long, unsigned)
	}
	if nInt > 1 {
		return bad()
	}
	return p.nav.Prim(ast.Int, unsigned)
}

func (p *Parser) parseQualifiers() ast.Qualifier {
	var q ast.Qualifier
	for {
		switch {
		case p.match(token.CONST):
			q |= ast.QualConst
		case p.match(token.VOLATILE):
			q |= ast.QualVolatile
		case p.check(token.ATTRIBUTE):
			p.parseAttributes()
		default:
			return q
		}
	}
}

func (p *Parser) parseRecord() ast.Type {
	kw := p.advance()
	union := kw.Type == token.UNION
	p.parseAttributes()

	tag := ""
	if p.check(token.IDENTIFIER) {
		tag = p.advance().Lexeme
	}

	if !p.check(token.LEFT_BRACE) {
		if tag == "" {
			p.parseError(p.peek(0), "expected '{' or tag name after struct/union")
		}
		if t := p.scope.LookupTag(tag); t != nil && !(p.check(token.SEMICOLON) && p.scope.LookupTagLocal(tag) == nil) {
			r, ok := t.(*ast.Record)
			if !ok || r.Def.Union != union {
				p.errorf(kw.Pos, "'%s' defined as wrong kind of tag", tag)
				return p.nav.Int()
			}
			return r
		}
		r := &ast.Record{Def: &ast.RecordDef{Tag: tag, Union: union, Pos: kw.Pos}}
		p.scope.DeclareTag(tag, r)
		return r
	}

	var r *ast.Record
	if tag != "" {
		if t := p.scope.LookupTagLocal(tag); t != nil {
			prev, ok := t.(*ast.Record)
			switch {
			case !ok || prev.Def.Union != union:
				p.errorf(kw.Pos, "'%s' defined as wrong kind of tag", tag)
			case prev.Def.Complete:
				p.errorf(kw.Pos, "redefinition of '%s %s'", kw.Lexeme, tag)
			default:
				r = prev
			}
		}
	}
	if r == nil {
		r = &ast.Record{Def: &ast.RecordDef{Tag: tag, Union: union, Pos: kw.Pos}}
		if tag != "" {
			p.scope.DeclareTag(tag, r)
		}
	}

	p.expect(token.LEFT_BRACE, "expected '{'")
	var fields []*ast.Field
	for !p.check(token.RIGHT_BRACE) && !p.check(token.EOF) {
		fields = append(fields, p.parseFieldDeclaration()...)
	}
	p.expect(token.RIGHT_BRACE, "expected '}' after member list")
	p.parseAttributes()

	r.Def.Fields = fields
	r.Def.Complete = true
	p.nav.LayoutRecord(r.Def)
	return r
}

func (p *Parser) parseFieldDeclaration() []*ast.Field {
	spec := p.parseDeclSpecifiers(false)
	if spec.implicit {
		p.parseError(p.peek(0), "expected member type")
	}

	var fields []*ast.Field

	if p.match(token.SEMICOLON) {
		// anonymous struct or union member
		if ast.IsRecord(spec.typ) {
			fields = append(fields, &ast.Field{Type: spec.typ, Pos: spec.pos, BitWidth: -1})
		} else {
			p.diag.Warn(config.WarnAttr, spec.pos, "declaration does not declare anything")
		}
		return fields
	}

	for {
		f := &ast.Field{BitWidth: -1, Pos: p.peek(0).Pos}
		if !p.check(token.COLON) {
			d := p.parseDeclarator(false)
			f.Name = d.name.Lexeme
			f.Pos = d.name.Pos
			f.Type = p.applyDeclarator(spec.typ, d.ops)
		} else {
			f.Type = spec.typ
		}

		if p.match(token.COLON) {
			f.WidthExpr = p.parseConditional()
			if w, ok := p.constInt(f.WidthExpr, "bit-field width is not an integer constant"); ok {
				switch {
				case !ast.IsIntegral(f.Type):
					p.errorf(f.Pos, "bit-field '%s' has invalid type", f.Name)
				case w < 0 || w > p.nav.Size(f.Type)*8:
					p.errorf(f.Pos, "width of bit-field '%s' (%d bits) is invalid", f.Name, w)
				case w == 0 && f.Name != "":
					p.errorf(f.Pos, "zero width for bit-field '%s'", f.Name)
				default:
					f.BitWidth = int(w)
				}
			}
		}

		if !ast.IsComplete(f.Type) {
			p.errorf(f.Pos, "field '%s' has incomplete type", f.Name)
			f.Type = p.nav.Int()
		}

		fields = append(fields, f)
		if !p.match(token.COMMA) {
			break
		}
	}
	p.parseAttributes()
	p.expect(token.SEMICOLON, "expected ';' after member declaration")
	return fields
}

func (p *Parser) parseEnum() ast.Type {
	kw := p.advance()
	p.parseAttributes()

	tag := ""
	if p.check(token.IDENTIFIER) {
		tag = p.advance().Lexeme
	}

	if !p.check(token.LEFT_BRACE) {
		if tag == "" {
			p.parseError(p.peek(0), "expected '{' or tag name after enum")
		}
		if t := p.scope.LookupTag(tag); t != nil {
			if e, ok := t.(*ast.Enum); ok {
				return e
			}
			p.errorf(kw.Pos, "'%s' defined as wrong kind of tag", tag)
			return p.nav.Int()
		}
		e := &ast.Enum{Def: &ast.EnumDef{Tag: tag, Pos: kw.Pos}}
		p.scope.DeclareTag(tag, e)
		return e
	}

	e := &ast.Enum{Def: &ast.EnumDef{Tag: tag, Pos: kw.Pos}}
	if tag != "" {
		if prev, ok := p.scope.LookupTagLocal(tag).(*ast.Enum); ok && prev.Def.Complete {
			p.errorf(kw.Pos, "redefinition of 'enum %s'", tag)
		}
		p.scope.DeclareTag(tag, e)
	}

	p.expect(token.LEFT_BRACE, "expected '{'")
	var next int64
	for !p.check(token.RIGHT_BRACE) {
		name := p.expect(token.IDENTIFIER, "expected enumerator name")
		m := &ast.EnumMember{Name: name.Lexeme, Pos: name.Pos, Def: e.Def}
		if p.match(token.EQUAL) {
			m.Expr = p.parseConditional()
			if v, ok := p.constInt(m.Expr, "enumerator value is not an integer constant"); ok {
				next = v
			}
		}
		m.Value = next
		next++

		if p.scope.LookupLocal(m.Name) != nil {
			p.errorf(m.Pos, "redeclaration of '%s'", m.Name)
		}
		e.Def.Members = append(e.Def.Members, m)
		p.scope.DeclareEnumMember(m)

		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RIGHT_BRACE, "expected '}' after enumerator list")
	e.Def.Complete = true
	return e
}

// parseAttributes reads any number of __attribute__((...)) groups.
func (p *Parser) parseAttributes() []*ast.Attribute {
	var attrs []*ast.Attribute
	for p.match(token.ATTRIBUTE) {
		p.expect(token.LEFT_PAREN, "expected '(' after __attribute__")
		p.expect(token.LEFT_PAREN, "expected '((' after __attribute__")
		for !p.check(token.RIGHT_PAREN) {
			if a := p.parseAttribute(); a != nil {
				attrs = append(attrs, a)
			}
			if !p.match(token.COMMA) {
				break
			}
		}
		p.expect(token.RIGHT_PAREN, "expected ')' after attribute list")
		p.expect(token.RIGHT_PAREN, "expected '))' after attribute list")
	}
	return attrs
}

func trimUnderscores(name string) string {
	if len(name) > 4 && name[:2] == "__" && name[len(name)-2:] == "__" {
		return name[2 : len(name)-2]
	}
	return name
}

func (p *Parser) parseAttribute() *ast.Attribute {
	tok := p.advance()
	if tok.Type != token.IDENTIFIER && !tok.Type.IsKeyword() {
		p.parseError(tok, "expected attribute name")
	}

	a := &ast.Attribute{Pos: tok.Pos}
	switch trimUnderscores(tok.Lexeme) {
	case "noreturn":
		a.Kind = ast.AttrNoreturn
	case "unused":
		a.Kind = ast.AttrUnused
	case "warn_unused_result":
		a.Kind = ast.AttrWarnUnusedResult
	case "weak":
		a.Kind = ast.AttrWeak
	case "section":
		a.Kind = ast.AttrSection
		p.expect(token.LEFT_PAREN, "expected '(' after section")
		a.Section = p.expect(token.STRING, "section name must be a string").Str
		p.expect(token.RIGHT_PAREN, "expected ')'")
	case "format":
		a.Kind = ast.AttrFormat
		p.expect(token.LEFT_PAREN, "expected '(' after format")
		archetype := p.expect(token.IDENTIFIER, "expected format archetype")
		if trimUnderscores(archetype.Lexeme) != "printf" {
			p.diag.Warn(config.WarnAttr, archetype.Pos, "unknown format archetype '%s'", archetype.Lexeme)
		}
		p.expect(token.COMMA, "expected ',' in format attribute")
		a.FmtIdx = int(p.expect(token.INT, "format index must be an integer").Int)
		p.expect(token.COMMA, "expected ',' in format attribute")
		a.VarIdx = int(p.expect(token.INT, "variadic index must be an integer").Int)
		p.expect(token.RIGHT_PAREN, "expected ')'")
	default:
		p.diag.Warn(config.WarnAttr, tok.Pos, "ignoring unknown attribute '%s'", tok.Lexeme)
		if p.check(token.LEFT_PAREN) {
			p.skipBalanced()
		}
		return nil
	}
	return a
}

func (p *Parser) skipBalanced() {
	depth := 0
	for {
		tok := p.advance()
		switch tok.Type {
		case token.LEFT_PAREN:
			depth++
		case token.RIGHT_PAREN:
			depth--
			if depth == 0 {
				return
			}
		case token.EOF:
			p.parseError(tok, "unbalanced parentheses")
		}
	}
}

const (
	opPointer = iota
	opArray
	opFunction
)

type declOp struct {
	kind  int
	qual  ast.Qualifier
	array *ast.Array
	fn    *ast.Function
}

type declarator struct {
	name  token.Token
	ops   []declOp
	attrs []*ast.Attribute

	// the parameter list written directly after the name
	params     []*ast.Decl
	paramScope *ast.Scope
	hasParams  bool
}

// parseDeclarator parses a possibly abstract declarator. The returned ops
// apply to the base type in order: the syntax nearest the name becomes the
// outermost type layer.
func (p *Parser) parseDeclarator(abstract bool) *declarator {
	d := &declarator{}
	d.ops = p.declaratorOps(d)
	d.attrs = append(d.attrs, p.parseAttributes()...)
	if !abstract && d.name.Type != token.IDENTIFIER {
		p.parseError(p.peek(0), "expected identifier or '('")
	}
	return d
}

func (p *Parser) nestedDeclaratorAhead() bool {
	next := p.peek(1)
	switch next.Type {
	case token.STAR, token.LEFT_BRACKET, token.ATTRIBUTE:
		return true
	case token.LEFT_PAREN:
		return !p.isTypeStart(p.peek(2)) && p.peek(2).Type != token.RIGHT_PAREN
	case token.IDENTIFIER:
		return !p.isTypedefName(next)
	}
	return false
}

func (p *Parser) declaratorOps(d *declarator) []declOp {
	var ptrs []declOp
	for p.match(token.STAR) {
		ptrs = append(ptrs, declOp{kind: opPointer, qual: p.parseQualifiers()})
	}

	var inner []declOp
	direct := false
	if p.check(token.LEFT_PAREN) && p.nestedDeclaratorAhead() {
		p.advance()
		d.attrs = append(d.attrs, p.parseAttributes()...)
		inner = p.declaratorOps(d)
		p.expect(token.RIGHT_PAREN, "expected ')' in declarator")
	} else if p.check(token.IDENTIFIER) {
		d.name = p.advance()
		direct = true
	}

	var suffixes []declOp
	for {
		if p.match(token.LEFT_BRACKET) {
			arr := &ast.Array{}
			p.parseQualifiers()
			p.match(token.STATIC)
			if !p.check(token.RIGHT_BRACKET) {
				arr.LenExpr = p.parseAssignment()
				if n, ok := p.constInt(arr.LenExpr, "array size is not an integer constant"); ok {
					if n < 0 {
						p.errorf(arr.LenExpr.Position(), "size of array is negative")
						n = 1
					}
					arr.Len, arr.Sized = n, true
				}
			}
			p.expect(token.RIGHT_BRACKET, "expected ']'")
			suffixes = append(suffixes, declOp{kind: opArray, array: arr})
		} else if p.check(token.LEFT_PAREN) {
			fn, params, scope := p.parseParams()
			if direct && !d.hasParams && len(suffixes) == 0 {
				d.params, d.paramScope, d.hasParams = params, scope, true
			}
			suffixes = append(suffixes, declOp{kind: opFunction, fn: fn})
		} else {
			break
		}
	}

	ops := ptrs
	for i := len(suffixes) - 1; i >= 0; i-- {
		ops = append(ops, suffixes[i])
	}
	return append(ops, inner...)
}

func (p *Parser) parseParams() (*ast.Function, []*ast.Decl, *ast.Scope) {
	p.expect(token.LEFT_PAREN, "expected '('")
	fn := &ast.Function{}

	scope := p.enterScope()
	defer p.exitScope()

	if p.match(token.RIGHT_PAREN) {
		fn.NoProto = true
		return fn, nil, scope
	}
	if p.check(token.VOID) && p.peek(1).Type == token.RIGHT_PAREN {
		p.advance()
		p.advance()
		return fn, nil, scope
	}

	var params []*ast.Decl
	for {
		if p.match(token.ELLIPSIS) {
			fn.Variadic = true
			break
		}
		spec := p.parseDeclSpecifiers(true)
		if spec.implicit {
			if p.check(token.IDENTIFIER) {
				p.parseError(p.peek(0), "unknown type name '"+p.peek(0).Lexeme+"'")
			}
			p.parseError(p.peek(0), "expected parameter declaration")
		}
		if spec.storage != ast.StorageNone && spec.storage != ast.StorageRegister {
			p.errorf(spec.pos, "invalid storage class for parameter")
		}
		d := p.parseDeclarator(true)
		typ := p.nav.Decay(p.applyDeclarator(spec.typ, d.ops))
		if ast.IsVoid(typ) {
			p.errorf(spec.pos, "parameter has void type")
		}

		param := &ast.Decl{
			Name:    d.name.Lexeme,
			Type:    typ,
			Storage: spec.storage,
			Pos:     spec.pos,
			Attrs:   append(spec.attrs, d.attrs...),
		}
		if d.name.Type == token.IDENTIFIER {
			param.Pos = d.name.Pos
		}
		param.Sym = &ast.Symbol{Decl: param, Kind: ast.SymParam, Index: len(params)}
		if param.Name != "" {
			if prev := scope.Declare(param); prev != nil {
				p.errorf(param.Pos, "redefinition of parameter '%s'", param.Name)
			}
		}
		params = append(params, param)
		fn.Params = append(fn.Params, typ)

		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RIGHT_PAREN, "expected ')' after parameters")
	return fn, params, scope
}

func (p *Parser) applyDeclarator(base ast.Type, ops []declOp) ast.Type {
	t := base
	for _, op := range ops {
		switch op.kind {
		case opPointer:
			t = &ast.Pointer{Elem: t, Qual: op.qual}
		case opArray:
			if ast.IsFunction(t) {
				p.errorf(p.peek(0).Pos, "declaration of array of functions")
			}
			arr := *op.array
			arr.Elem = t
			t = &arr
		case opFunction:
			if ast.IsFunction(t) || ast.IsArray(t) {
				p.errorf(p.peek(0).Pos, "function cannot return %s", t)
			}
			fn := *op.fn
			fn.Return = t
			t = &fn
		}
	}
	return t
}

// parseTypeName parses a type in a cast, sizeof or builtin argument.
func (p *Parser) parseTypeName() ast.Type {
	spec := p.parseDeclSpecifiers(false)
	if spec.implicit {
		p.parseError(p.peek(0), "expected type name")
	}
	d := p.parseDeclarator(true)
	if d.name.Type == token.IDENTIFIER {
		p.parseError(d.name, "unexpected identifier in type name")
	}
	return p.applyDeclarator(spec.typ, d.ops)
}

// parseDeclaration parses the declarators following spec. At file scope a
// function declarator followed by `{` is a definition.
func (p *Parser) parseDeclaration(spec *declSpec, topLevel bool) []*ast.Decl {
	if p.match(token.SEMICOLON) {
		if !ast.IsRecord(spec.typ) && !isEnum(spec.typ) {
			p.diag.Warn(config.WarnAttr, spec.pos, "declaration does not declare anything")
		}
		return nil
	}

	var decls []*ast.Decl
	for first := true; ; first = false {
		d := p.parseDeclarator(false)
		decl := &ast.Decl{
			Name:    d.name.Lexeme,
			Type:    p.applyDeclarator(spec.typ, d.ops),
			Storage: spec.storage,
			Pos:     d.name.Pos,
			Inline:  spec.inline,
			Attrs:   append(append([]*ast.Attribute{}, spec.attrs...), d.attrs...),
		}
		p.declare(decl)
		decls = append(decls, decl)

		if decl.IsFunction() && p.check(token.LEFT_BRACE) {
			if !topLevel || !first {
				p.parseError(p.peek(0), "function definition is not allowed here")
			}
			if !d.hasParams {
				p.parseError(p.peek(0), "expected parameter list before function body")
			}
			p.parseFunctionBody(decl, d)
			return decls
		}

		if p.match(token.EQUAL) {
			if decl.IsTypedef() {
				p.errorf(decl.Pos, "typedef '%s' is initialised", decl.Name)
			}
			decl.Init = p.parseInitializer()
			if decl.Sym != nil {
				p.checkRedefinition(decl)
				decl.Sym.Decl = decl
			}
		}

		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.SEMICOLON, "expected ';' after declaration")
	return decls
}

func isEnum(t ast.Type) bool {
	_, ok := t.(*ast.Enum)
	return ok
}

// declare enters decl into the current scope, linking redeclarations of
// the same object or function.
func (p *Parser) declare(decl *ast.Decl) {
	kind := ast.SymLocal
	if p.scope.IsGlobal() {
		kind = ast.SymGlobal
	}

	if prev := p.scope.LookupLocal(decl.Name); prev != nil {
		linkable := kind == ast.SymGlobal || decl.Storage == ast.StorageExtern || decl.IsFunction()
		switch {
		case prev.IsTypedef() || decl.IsTypedef():
			if !(prev.IsTypedef() && decl.IsTypedef() && ast.Equal(prev.Type, decl.Type, ast.CmpExact)) {
				p.errorf(decl.Pos, "redefinition of '%s'", decl.Name)
			}
		case !linkable:
			p.errorf(decl.Pos, "redefinition of '%s'", decl.Name)
		case !ast.Equal(prev.Type, decl.Type, ast.CmpIgnoreQual):
			p.errorf(decl.Pos, "conflicting types for '%s' (%s vs %s)", decl.Name, decl.Type, prev.Type)
		default:
			decl.Prev = prev
			if prev.Prev != nil {
				decl.Prev = prev.Prev
			}
			decl.Sym = prev.Sym
			// `extern int a[]; int a[3];` completes the first declaration
			if a, ok := decl.Type.(*ast.Array); ok && !a.Sized {
				decl.Type = prev.Type
			}
		}
	}

	if !decl.IsTypedef() && decl.Sym == nil {
		decl.Sym = &ast.Symbol{Decl: decl, Kind: kind}
	}
	p.scope.Declare(decl)
}

// checkRedefinition reports a second initialised definition of an object
// declared more than once in the same scope.
func (p *Parser) checkRedefinition(decl *ast.Decl) {
	for _, other := range p.scope.Decls {
		if other != decl && other.Sym == decl.Sym && other.Init != nil {
			p.errorf(decl.Pos, "redefinition of '%s'", decl.Name)
			return
		}
	}
}

func (p *Parser) parseFunctionBody(decl *ast.Decl, d *declarator) {
	scope := d.paramScope
	if scope == nil {
		scope = ast.NewScope(p.scope)
	}
	scope.Function = decl
	decl.Scope = scope
	decl.Params = d.params
	decl.Sym.Decl = decl

	for _, other := range p.scope.Decls {
		if other != decl && other.Sym == decl.Sym && other.Body != nil {
			p.errorf(decl.Pos, "redefinition of function '%s'", decl.Name)
			break
		}
	}

	outerScope, outerFn := p.scope, p.fn
	p.scope, p.fn = scope, decl
	defer func() {
		p.scope, p.fn = outerScope, outerFn
	}()

	decl.Body = p.parseCompound(false)
}

// parseInitializer parses an expression or a braced initializer list.
func (p *Parser) parseInitializer() ast.Initializer {
	if !p.check(token.LEFT_BRACE) {
		return p.parseAssignment()
	}

	list := &ast.InitList{Pos: p.advance().Pos}
	for !p.check(token.RIGHT_BRACE) {
		if p.check(token.DOT) || p.check(token.LEFT_BRACKET) {
			p.parseError(p.peek(0), "designated initialisers are not supported")
		}
		list.Items = append(list.Items, p.parseInitializer())
		if !p.match(token.COMMA) {
			break
		}
	}
	p.expect(token.RIGHT_BRACE, "expected '}' after initialiser list")
	return list
}
