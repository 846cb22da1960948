// Package parser implements GML's recursive-descent, precedence-climbing
// parser: tokens (from pkg/gml/lexer) to AST (pkg/gml/ast).
package parser

import (
	"fmt"

	"github.com/r3e-network/flowengine/pkg/gml/ast"
	"github.com/r3e-network/flowengine/pkg/gml/lexer"
	"github.com/r3e-network/flowengine/pkg/gml/value"
)

// Error is a parse-time error carrying the token position.
type Error struct {
	Position int
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at token %d: %s", e.Position, e.Message)
}

// Parser holds the full token buffer and a cursor, enabling backtracking
// for the lambda-vs-grouped-expression and method-call-vs-path-segment
// ambiguities in the grammar.
type Parser struct {
	tokens []lexer.Token
	pos    int
}

// New lexes source in full and returns a Parser over its tokens.
func New(source string) (*Parser, error) {
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		return nil, err
	}
	return &Parser{tokens: tokens}, nil
}

// Parse parses the entire script: statements separated by optional commas.
func (p *Parser) Parse() (*ast.Script, error) {
	var statements []ast.Statement
	for !p.atEnd() {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
		if p.check(lexer.Comma) {
			p.advance()
		}
	}
	return &ast.Script{Statements: statements}, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	if p.check(lexer.Return) {
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return ast.Return{Expression: expr}, nil
	}

	if p.checkKind(lexer.Ident) {
		startPos := p.pos
		isTemp := false
		var field string
		if p.check(lexer.Dollar) {
			p.advance()
			if !p.checkKind(lexer.Ident) {
				return nil, p.error("expected identifier after $")
			}
			field = "$" + p.peek().Str
			p.advance()
			isTemp = true
		} else {
			field = p.peek().Str
			p.advance()
		}

		if p.check(lexer.Eq) {
			p.advance()
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			return ast.Assignment{Field: field, IsTemp: isTemp, Expression: expr}, nil
		}
		// Not an assignment: backtrack and parse as expression.
		p.pos = startPos
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return ast.ExprStatement{Expression: expr}, nil
}

func (p *Parser) parseExpression() (ast.Expression, error) { return p.parseTernary() }

func (p *Parser) parseTernary() (ast.Expression, error) {
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.check(lexer.Question) {
		p.advance()
		then, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(lexer.Colon); err != nil {
			return nil, err
		}
		els, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return ast.Ternary{Condition: expr, ThenBranch: then, ElseBranch: els}, nil
	}
	return expr, nil
}

func (p *Parser) parseOr() (ast.Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.Or) {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Left: left, Op: ast.OpOr, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expression, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.And) {
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Left: left, Op: ast.OpAnd, Right: right}
	}
	return left, nil
}

func (p *Parser) parseEquality() (ast.Expression, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch p.peekKind() {
		case lexer.EqEq:
			op = ast.OpEq
		case lexer.Ne:
			op = ast.OpNe
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Left: left, Op: op, Right: right}
	}
}

func (p *Parser) parseComparison() (ast.Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch p.peekKind() {
		case lexer.Lt:
			op = ast.OpLt
		case lexer.Le:
			op = ast.OpLe
		case lexer.Gt:
			op = ast.OpGt
		case lexer.Ge:
			op = ast.OpGe
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Left: left, Op: op, Right: right}
	}
}

func (p *Parser) parseAdditive() (ast.Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch p.peekKind() {
		case lexer.Plus:
			op = ast.OpAdd
		case lexer.Minus:
			op = ast.OpSub
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Left: left, Op: op, Right: right}
	}
}

func (p *Parser) parseMultiplicative() (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch p.peekKind() {
		case lexer.Star:
			op = ast.OpMul
		case lexer.Slash:
			op = ast.OpDiv
		case lexer.Percent:
			op = ast.OpMod
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Left: left, Op: op, Right: right}
	}
}

func (p *Parser) parseUnary() (ast.Expression, error) {
	switch p.peekKind() {
	case lexer.Not:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Op: ast.OpNot, Operand: operand}, nil
	case lexer.Minus:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Op: ast.OpNeg, Operand: operand}, nil
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() (ast.Expression, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		if p.check(lexer.Dot) {
			p.advance()
			if !p.checkKind(lexer.Ident) {
				return nil, p.error("expected identifier after '.'")
			}
			method := p.peek().Str
			p.advance()
			if p.check(lexer.LParen) {
				p.advance()
				args, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				if err := p.expect(lexer.RParen); err != nil {
					return nil, err
				}
				expr = ast.MethodCall{Target: expr, Method: method, Args: args}
			} else if v, ok := expr.(ast.Variable); ok {
				v.Path = append(append([]string{}, v.Path...), method)
				expr = v
			} else {
				expr = ast.MethodCall{Target: expr, Method: method}
			}
		} else if p.check(lexer.LBracket) {
			p.advance()
			var idx ast.Index
			idx.Target = expr
			if p.check(lexer.Hash) {
				p.advance()
				idx.Kind = ast.IndexLast
			} else {
				ie, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				if lit, ok := ie.(ast.Literal); ok && lit.Value.Kind() == value.KindInt {
					idx.Kind = ast.IndexNumber
					idx.Number = lit.Value.AsInt()
				} else {
					idx.Kind = ast.IndexExpression
					idx.Expr = ie
				}
			}
			if err := p.expect(lexer.RBracket); err != nil {
				return nil, err
			}
			expr = idx
		} else {
			break
		}
	}
	return expr, nil
}

func (p *Parser) parsePrimary() (ast.Expression, error) {
	tok := p.peek()
	switch tok.Kind {
	case lexer.Null:
		p.advance()
		return ast.Literal{Value: value.Null}, nil
	case lexer.Bool:
		p.advance()
		return ast.Literal{Value: value.Bool(tok.Bool)}, nil
	case lexer.Int:
		p.advance()
		return ast.Literal{Value: value.Int(tok.Int)}, nil
	case lexer.Float:
		p.advance()
		return ast.Literal{Value: value.Float(tok.Float)}, nil
	case lexer.String:
		p.advance()
		return ast.Literal{Value: value.String(tok.Str)}, nil
	case lexer.Template:
		p.advance()
		return p.parseTemplateParts(tok.Str)
	case lexer.This:
		p.advance()
		var path []string
		for p.check(lexer.Dot) {
			p.advance()
			if !p.checkKind(lexer.Ident) {
				return nil, p.error("expected identifier after 'this.'")
			}
			path = append(path, p.peek().Str)
			p.advance()
		}
		return ast.This{Path: path}, nil
	case lexer.Spread:
		p.advance()
		target, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		return ast.Spread{Expression: target}, nil
	case lexer.Case:
		return p.parseCase()
	case lexer.Ident:
		name := tok.Str
		p.advance()
		if p.check(lexer.LParen) {
			p.advance()
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			if err := p.expect(lexer.RParen); err != nil {
				return nil, err
			}
			return ast.FunctionCall{Name: name, Args: args}, nil
		}
		if p.check(lexer.Arrow) {
			p.advance()
			body, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			return ast.Lambda{Params: []string{name}, Body: body}, nil
		}
		path := []string{name}
		for p.check(lexer.Dot) {
			dotPos := p.pos
			p.advance()
			if !p.checkKind(lexer.Ident) {
				return nil, p.error("expected identifier after '.'")
			}
			seg := p.peek().Str
			p.advance()
			if p.check(lexer.LParen) {
				p.pos = dotPos
				break
			}
			path = append(path, seg)
		}
		return ast.Variable{Path: path}, nil
	case lexer.LParen:
		return p.parseParenOrLambda()
	case lexer.LBracket:
		p.advance()
		var elements []ast.Expression
		for !p.check(lexer.RBracket) && !p.atEnd() {
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			elements = append(elements, e)
			if !p.check(lexer.RBracket) {
				if err := p.expect(lexer.Comma); err != nil {
					return nil, err
				}
			}
		}
		if err := p.expect(lexer.RBracket); err != nil {
			return nil, err
		}
		return ast.ArrayLiteral{Elements: elements}, nil
	case lexer.LBrace:
		p.advance()
		var fields []ast.ObjectField
		for !p.check(lexer.RBrace) && !p.atEnd() {
			f, err := p.parseObjectField()
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
			if !p.check(lexer.RBrace) && p.check(lexer.Comma) {
				p.advance()
			}
		}
		if err := p.expect(lexer.RBrace); err != nil {
			return nil, err
		}
		return ast.ObjectLiteral{Fields: fields}, nil
	case lexer.EOF:
		return nil, p.error("unexpected end of input")
	default:
		return nil, p.error("unexpected token")
	}
}

// parseParenOrLambda disambiguates `(expr)` from `(a, b) => expr` by
// attempting the lambda-parameter-list parse first and backtracking on
// mismatch, mirroring the Rust original's approach.
func (p *Parser) parseParenOrLambda() (ast.Expression, error) {
	p.advance() // consume '('
	if p.checkKind(lexer.Ident) {
		start := p.pos
		var params []string
		for p.checkKind(lexer.Ident) {
			params = append(params, p.peek().Str)
			p.advance()
			if p.check(lexer.Comma) {
				p.advance()
			} else {
				break
			}
		}
		if p.check(lexer.RParen) {
			p.advance()
			if p.check(lexer.Arrow) {
				p.advance()
				body, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				return ast.Lambda{Params: params, Body: body}, nil
			}
		}
		p.pos = start
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(lexer.RParen); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *Parser) parseCase() (ast.Expression, error) {
	if err := p.expect(lexer.Case); err != nil {
		return nil, err
	}
	var branches []ast.CaseBranch
	var elseBranch ast.Expression
	for {
		if p.check(lexer.When) {
			p.advance()
			when, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expect(lexer.Then); err != nil {
				return nil, err
			}
			then, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			branches = append(branches, ast.CaseBranch{When: when, Then: then})
		} else if p.check(lexer.Else) {
			p.advance()
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			elseBranch = e
			break
		} else if p.check(lexer.End) {
			break
		} else {
			return nil, p.error("expected WHEN, ELSE, or END in CASE expression")
		}
	}
	if err := p.expect(lexer.End); err != nil {
		return nil, err
	}
	return ast.Case{Branches: branches, ElseBranch: elseBranch}, nil
}

func (p *Parser) parseObjectField() (ast.ObjectField, error) {
	if p.check(lexer.Spread) {
		p.advance()
		target, err := p.parsePostfix()
		if err != nil {
			return ast.ObjectField{}, err
		}
		return ast.ObjectField{Kind: ast.FieldSpread, Value: target}, nil
	}
	if p.checkKind(lexer.Ident) {
		name := p.peek().Str
		p.advance()
		if p.check(lexer.Eq) {
			p.advance()
			val, err := p.parseExpression()
			if err != nil {
				return ast.ObjectField{}, err
			}
			return ast.ObjectField{Kind: ast.FieldNamed, Name: name, Value: val}, nil
		}
		return ast.ObjectField{Kind: ast.FieldShorthand, Name: name}, nil
	}
	return ast.ObjectField{}, p.error("expected field name in object literal")
}

func (p *Parser) parseArgs() ([]ast.Expression, error) {
	var args []ast.Expression
	for !p.check(lexer.RParen) && !p.atEnd() {
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		if !p.check(lexer.RParen) {
			if err := p.expect(lexer.Comma); err != nil {
				return nil, err
			}
		}
	}
	return args, nil
}

// parseTemplateParts scans a raw template string's ${...} chunks, parsing
// each expression chunk with a fresh Parser instance, matching the Rust
// original's approach of recursively invoking its own parser.
func (p *Parser) parseTemplateParts(tmpl string) (ast.Expression, error) {
	var parts []ast.TemplatePart
	var current []rune
	runes := []rune(tmpl)
	i := 0
	flush := func() {
		if len(current) > 0 {
			parts = append(parts, ast.TemplatePart{Kind: ast.TemplateLiteral, Literal: string(current)})
			current = nil
		}
	}
	for i < len(runes) {
		ch := runes[i]
		if ch == '$' && i+1 < len(runes) && runes[i+1] == '{' {
			i += 2
			flush()
			braceCount := 1
			start := i
			for i < len(runes) {
				c := runes[i]
				if c == '{' {
					braceCount++
				} else if c == '}' {
					braceCount--
					if braceCount == 0 {
						break
					}
				}
				i++
			}
			exprStr := string(runes[start:i])
			i++ // consume closing '}'
			sub, err := New(exprStr)
			if err != nil {
				return nil, err
			}
			script, err := sub.Parse()
			if err != nil {
				return nil, err
			}
			if len(script.Statements) > 0 {
				if es, ok := script.Statements[0].(ast.ExprStatement); ok {
					parts = append(parts, ast.TemplatePart{Kind: ast.TemplateExpr, Expr: es.Expression})
				}
			}
			continue
		}
		if ch == '\\' && i+1 < len(runes) {
			next := runes[i+1]
			switch next {
			case 'n':
				current = append(current, '\n')
			case 't':
				current = append(current, '\t')
			case 'r':
				current = append(current, '\r')
			default:
				current = append(current, next)
			}
			i += 2
			continue
		}
		current = append(current, ch)
		i++
	}
	flush()
	return ast.Template{Parts: parts}, nil
}

// --- token cursor helpers ---

func (p *Parser) peek() lexer.Token {
	if p.pos >= len(p.tokens) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekKind() lexer.Kind { return p.peek().Kind }

func (p *Parser) advance() lexer.Token {
	tok := p.peek()
	if !p.atEnd() {
		p.pos++
	}
	return tok
}

func (p *Parser) check(k lexer.Kind) bool     { return p.peekKind() == k }
func (p *Parser) checkKind(k lexer.Kind) bool { return p.peekKind() == k }

func (p *Parser) expect(k lexer.Kind) error {
	if p.check(k) {
		p.advance()
		return nil
	}
	return p.error(fmt.Sprintf("expected token kind %v", k))
}

func (p *Parser) atEnd() bool { return p.peekKind() == lexer.EOF }

func (p *Parser) error(message string) error {
	return &Error{Position: p.pos, Message: message}
}

// Parse is a convenience entry point: lex + parse source in one call.
func Parse(source string) (*ast.Script, error) {
	p, err := New(source)
	if err != nil {
		return nil, err
	}
	return p.Parse()
}
