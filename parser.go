package formulaengine

import (
	"strconv"
	"strings"
)

// Parser is a precedence-climbing recursive-descent parser over the token
// stream produced by Lexer. Parsing either succeeds completely or returns
// a *ParseError -- there is no partial success, so callers (notably the
// reference rewriters) can safely fall back to the original text.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse parses formula source (with or without a leading '=') into a
// syntax tree. An empty or whitespace-only formula parses to *EmptyNode.
func Parse(source string) (Node, error) {
	if strings.TrimSpace(strings.TrimPrefix(source, "=")) == "" {
		return &EmptyNode{}, nil
	}
	tokens, err := NewLexer(source).Tokenize()
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens}
	node, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if p.current().Type != TokenEOF {
		return nil, &ParseError{Message: "unexpected trailing input", Position: p.current().Pos()}
	}
	return node, nil
}

func (p *Parser) current() Token { return p.tokens[p.pos] }
func (p *Parser) advance() Token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(t TokenType, what string) (Token, error) {
	if p.current().Type != t {
		return Token{}, &ParseError{Message: "expected " + what, Position: p.current().Pos()}
	}
	return p.advance(), nil
}

var comparisonOps = map[string]BinaryOperator{
	"=": OpEqual, "<>": OpNotEqual, "<": OpLess, ">": OpGreater, "<=": OpLessEqual, ">=": OpGreaterEqual,
}
var additiveOps = map[string]BinaryOperator{"+": OpAdd, "-": OpSubtract}
var multiplicativeOps = map[string]BinaryOperator{"*": OpMultiply, "/": OpDivide}

func (p *Parser) parseComparison() (Node, error) {
	left, err := p.parseConcatenation()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenOperator {
		op, ok := comparisonOps[p.current().Value]
		if !ok {
			break
		}
		tok := p.advance()
		right, err := p.parseConcatenation()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right, Position: span(left.Pos(), right.Pos(), tok.Pos())}
	}
	return left, nil
}

func (p *Parser) parseConcatenation() (Node, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenOperator && p.current().Value == "&" {
		tok := p.advance()
		right, err := p.parseAddition()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: OpConcat, Left: left, Right: right, Position: span(left.Pos(), right.Pos(), tok.Pos())}
	}
	return left, nil
}

func (p *Parser) parseAddition() (Node, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenOperator {
		op, ok := additiveOps[p.current().Value]
		if !ok {
			break
		}
		tok := p.advance()
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right, Position: span(left.Pos(), right.Pos(), tok.Pos())}
	}
	return left, nil
}

func (p *Parser) parseMultiplication() (Node, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenOperator {
		op, ok := multiplicativeOps[p.current().Value]
		if !ok {
			break
		}
		tok := p.advance()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Op: op, Left: left, Right: right, Position: span(left.Pos(), right.Pos(), tok.Pos())}
	}
	return left, nil
}

// parsePower is right-associative: 2^3^2 == 2^(3^2).
func (p *Parser) parsePower() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.current().Type == TokenOperator && p.current().Value == "^" {
		tok := p.advance()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return &BinaryOpNode{Op: OpPower, Left: left, Right: right, Position: span(left.Pos(), right.Pos(), tok.Pos())}, nil
	}
	return left, nil
}

func (p *Parser) parseUnary() (Node, error) {
	if p.current().Type == TokenOperator && (p.current().Value == "+" || p.current().Value == "-") {
		tok := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op := OpUnaryPlus
		if tok.Value == "-" {
			op = OpUnaryMinus
		}
		return &UnaryOpNode{Op: op, Operand: operand, Position: span(tok.Pos(), operand.Pos())}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenOperator && p.current().Value == "%" {
		tok := p.advance()
		node = &UnaryOpNode{Op: OpUnaryPercent, Operand: node, Position: span(node.Pos(), tok.Pos())}
	}
	return node, nil
}

func span(positions ...NodePosition) NodePosition {
	if len(positions) == 0 {
		return NodePosition{}
	}
	start, end := positions[0].Start, positions[0].End
	for _, pos := range positions[1:] {
		if pos.Start < start {
			start = pos.Start
		}
		if pos.End > end {
			end = pos.End
		}
	}
	return NodePosition{Start: start, End: end}
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.current()
	switch tok.Type {
	case TokenNumber:
		p.advance()
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, &ParseError{Message: "invalid number literal: " + tok.Value, Position: tok.Pos()}
		}
		return &ValueNode{Value: NumberValue(f), Position: tok.Pos()}, nil
	case TokenString:
		p.advance()
		return &ValueNode{Value: StringValue(tok.Value), Position: tok.Pos()}, nil
	case TokenBoolean:
		p.advance()
		return &ValueNode{Value: BooleanValue(tok.Value == "TRUE"), Position: tok.Pos()}, nil
	case TokenError:
		p.advance()
		code, _ := ErrorCodeFromToken(tok.Value)
		return &ErrorNode{Code: code, Message: tok.Value, Position: tok.Pos()}, nil
	case TokenInfinity:
		p.advance()
		return &InfinityNode{Sign: PositiveInfinity, Position: tok.Pos()}, nil
	case TokenFunction:
		return p.parseFunctionCall()
	case TokenLParen:
		p.advance()
		inner, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case TokenLBrace:
		return p.parseArrayLiteral()
	case TokenAt:
		return p.parseCurrentRowStructuredReference(nil, nil, nil)
	case TokenLBracket:
		return p.parseBracketPrimary(nil, nil)
	case TokenDollar, TokenIdentifier:
		return p.parseIdentifierLed()
	}
	return nil, &ParseError{Message: "unexpected token", Position: tok.Pos()}
}

func (p *Parser) parseFunctionCall() (Node, error) {
	tok := p.advance()
	if _, err := p.expect(TokenLParen, "'('"); err != nil {
		return nil, err
	}
	var args []Node
	if p.current().Type != TokenRParen {
		for {
			arg, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.current().Type == TokenComma {
				p.advance()
				continue
			}
			break
		}
	}
	closeTok, err := p.expect(TokenRParen, "')'")
	if err != nil {
		return nil, err
	}
	return &FunctionNode{Name: tok.Value, Args: args, Position: span(tok.Pos(), closeTok.Pos())}, nil
}

func (p *Parser) parseArrayLiteral() (Node, error) {
	startTok := p.advance()
	var rows [][]Node
	for {
		var row []Node
		for {
			cell, err := p.parseComparison()
			if err != nil {
				return nil, err
			}
			row = append(row, cell)
			if p.current().Type == TokenComma {
				p.advance()
				continue
			}
			break
		}
		rows = append(rows, row)
		if p.current().Type == TokenSemicolon {
			p.advance()
			continue
		}
		break
	}
	for _, row := range rows {
		if len(row) != len(rows[0]) {
			return nil, &ParseError{Message: "array literal rows must have equal length", Position: startTok.Pos()}
		}
	}
	endTok, err := p.expect(TokenRBrace, "'}'")
	if err != nil {
		return nil, err
	}
	return &ArrayNode{Rows: rows, Position: span(startTok.Pos(), endTok.Pos())}, nil
}

// parseIdentifierLed handles everything that begins with either an
// IDENTIFIER token or a leading '$': sheet-qualified references/ranges,
// 3D ranges, named expressions, structured table references, and plain
// (unqualified) references/ranges.
func (p *Parser) parseIdentifierLed() (Node, error) {
	startPos := p.pos
	startTok := p.current()

	if p.current().Type == TokenIdentifier {
		if p.tryThreeDRangeLookahead() {
			save := p.pos
			firstSheet := p.advance().Value
			p.advance() // colon
			secondSheet := p.advance().Value
			p.advance() // exclamation
			inner, err := p.parseAddressOrRange(nil, nil)
			if err != nil {
				p.pos = save
			} else {
				return &ThreeDRangeNode{
					StartSheet: unquoteSheetName(firstSheet),
					EndSheet:   unquoteSheetName(secondSheet),
					Inner:      inner,
					Position:   span(startTok.Pos(), inner.Pos()),
				}, nil
			}
		}
		if p.peekType(1) == TokenExclamation {
			sheet := unquoteSheetName(p.advance().Value)
			p.advance() // exclamation
			return p.parseAddressOrRange(&sheet, nil)
		}
		if p.peekType(1) == TokenLBracket {
			table := p.advance().Value
			return p.parseBracketPrimary(&table, nil)
		}
	}

	node, err := p.parseAddressOrRange(nil, nil)
	if err == nil {
		return node, nil
	}
	// fall back to a named expression
	p.pos = startPos
	if p.current().Type == TokenIdentifier {
		tok := p.advance()
		return &NamedExpressionNode{Name: tok.Value, Position: tok.Pos()}, nil
	}
	return nil, err
}

func (p *Parser) peekType(offset int) TokenType {
	idx := p.pos + offset
	if idx >= len(p.tokens) {
		return TokenEOF
	}
	return p.tokens[idx].Type
}

func (p *Parser) tryThreeDRangeLookahead() bool {
	return p.peekType(0) == TokenIdentifier && p.peekType(1) == TokenColon &&
		p.peekType(2) == TokenIdentifier && p.peekType(3) == TokenExclamation
}

func unquoteSheetName(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}

type addressComponent struct {
	hasCol bool
	col    uint32
	colAbs bool
	hasRow bool
	row    uint32
	rowAbs bool
}

// parseAddressComponent consumes one address-like component: an optional
// leading '$' (absolute column), column letters, an optional '$' (absolute
// row), and row digits -- any suffix may be absent to allow bare-column
// and bare-row forms.
func (p *Parser) parseAddressComponent() (addressComponent, Token, bool) {
	var comp addressComponent
	first := p.current()

	colAbs := false
	if p.current().Type == TokenDollar {
		p.advance()
		colAbs = true
	}

	switch p.current().Type {
	case TokenIdentifier:
		text := p.current().Value
		if letters, digits, ok := splitColumnRow(text); ok {
			p.advance()
			col, err := ColumnLetterToIndex(letters)
			if err != nil {
				return addressComponent{}, first, false
			}
			comp.hasCol, comp.col, comp.colAbs = true, col, colAbs
			if digits != "" {
				row, _ := strconv.ParseUint(digits, 10, 32)
				comp.hasRow, comp.row = true, uint32(row-1)
			}
			return comp, first, true
		}
		if isAllLetters(text) {
			p.advance()
			col, err := ColumnLetterToIndex(text)
			if err != nil {
				return addressComponent{}, first, false
			}
			comp.hasCol, comp.col, comp.colAbs = true, col, colAbs
			if p.current().Type == TokenDollar {
				p.advance()
				if p.current().Type != TokenNumber {
					return addressComponent{}, first, false
				}
				rowTok := p.advance()
				row, _ := strconv.ParseUint(rowTok.Value, 10, 32)
				comp.hasRow, comp.row, comp.rowAbs = true, uint32(row-1), true
			}
			return comp, first, true
		}
		return addressComponent{}, first, false
	case TokenNumber:
		if colAbs {
			return addressComponent{}, first, false
		}
		rowTok := p.advance()
		row, err := strconv.ParseUint(rowTok.Value, 10, 32)
		if err != nil {
			return addressComponent{}, first, false
		}
		comp.hasRow, comp.row = true, uint32(row-1)
		return comp, first, true
	}
	return addressComponent{}, first, false
}

// splitColumnRow splits a merged token like "A1" or "AB12" into its
// letters and trailing digits. ok is false if the text doesn't match
// letters-then-digits.
func splitColumnRow(s string) (letters, digits string, ok bool) {
	i := 0
	for i < len(s) && isAlpha(rune(s[i])) {
		i++
	}
	if i == 0 || i == len(s) {
		return "", "", false
	}
	for j := i; j < len(s); j++ {
		if !isDigit(rune(s[j])) {
			return "", "", false
		}
	}
	return s[:i], s[i:], true
}

func isAllLetters(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !isAlpha(c) {
			return false
		}
	}
	return true
}

// parseAddressOrRange parses a reference or range, optionally already
// carrying a resolved sheet/workbook qualifier.
func (p *Parser) parseAddressOrRange(sheet, workbook *string) (Node, error) {
	start := p.current()
	first, firstTok, ok := p.parseAddressComponent()
	if !ok {
		return nil, &ParseError{Message: "expected a cell reference", Position: start.Pos()}
	}

	if p.current().Type == TokenColon {
		p.advance()
		endSpan := p.current()
		if p.current().Type == TokenInfinity {
			p.advance()
			if !first.hasCol || !first.hasRow {
				return nil, &ParseError{Message: "INFINITY range end requires a finite start cell", Position: endSpan.Pos()}
			}
			return &RangeNode{
				StartCol: first.col, StartRow: first.row,
				EndCol: InfiniteBound(), EndRow: InfiniteBound(),
				StartAbsolute: AbsoluteFlag{Col: first.colAbs, Row: first.rowAbs},
				Sheet:         sheet, Workbook: workbook,
				Position: span(firstTok.Pos(), endSpan.Pos()),
			}, nil
		}
		second, secondTok, ok := p.parseAddressComponent()
		if !ok {
			return nil, &ParseError{Message: "expected a range end", Position: endSpan.Pos()}
		}
		return buildRange(first, second, sheet, workbook, span(firstTok.Pos(), secondTok.Pos()))
	}

	if !first.hasRow || !first.hasCol {
		return nil, &ParseError{Message: "bare column/row is only valid as a range operand", Position: firstTok.Pos()}
	}
	return &ReferenceNode{
		Column: first.col, Row: first.row,
		IsAbsolute: AbsoluteFlag{Col: first.colAbs, Row: first.rowAbs},
		Sheet:      sheet, Workbook: workbook,
		Position: firstTok.Pos(),
	}, nil
}

func buildRange(first, second addressComponent, sheet, workbook *string, pos NodePosition) (Node, error) {
	r := &RangeNode{Sheet: sheet, Workbook: workbook, Position: pos}

	switch {
	case first.hasCol && first.hasRow:
		r.StartCol, r.StartRow = first.col, first.row
		r.StartAbsolute = AbsoluteFlag{Col: first.colAbs, Row: first.rowAbs}
	case first.hasCol && !first.hasRow:
		// column range "A:A": canonical start is row 0.
		r.StartCol, r.StartRow = first.col, 0
		r.StartAbsolute = AbsoluteFlag{Col: first.colAbs, Row: false}
	case !first.hasCol && first.hasRow:
		// row range "5:5": canonical start is column 0.
		r.StartCol, r.StartRow = 0, first.row
		r.StartAbsolute = AbsoluteFlag{Col: false, Row: first.rowAbs}
	default:
		return nil, &ParseError{Message: "invalid range start", Position: pos}
	}

	switch {
	case second.hasCol && second.hasRow:
		r.EndCol = FiniteBound(second.col)
		r.EndRow = FiniteBound(second.row)
		r.EndAbsolute = AbsoluteFlag{Col: second.colAbs, Row: second.rowAbs}
	case second.hasCol && !second.hasRow:
		// "A5:D" -- bottom-open.
		r.EndCol = FiniteBound(second.col)
		r.EndRow = InfiniteBound()
		r.EndAbsolute = AbsoluteFlag{Col: second.colAbs, Row: false}
	case !second.hasCol && second.hasRow:
		// "A5:15" -- right-open.
		r.EndCol = InfiniteBound()
		r.EndRow = FiniteBound(second.row)
		r.EndAbsolute = AbsoluteFlag{Col: false, Row: second.rowAbs}
	default:
		return nil, &ParseError{Message: "invalid range end", Position: pos}
	}
	return r, nil
}

// parseCurrentRowStructuredReference handles "@Col" / "@[Col Name]".
func (p *Parser) parseCurrentRowStructuredReference(table, sheet, workbook *string) (Node, error) {
	startTok := p.advance() // '@'
	var col string
	if p.current().Type == TokenLBracket {
		p.advance()
		col = p.readColumnName()
		if _, err := p.expect(TokenRBracket, "']'"); err != nil {
			return nil, err
		}
	} else if p.current().Type == TokenIdentifier {
		col = p.advance().Value
	} else {
		return nil, &ParseError{Message: "expected column name after '@'", Position: p.current().Pos()}
	}
	return &StructuredReferenceNode{
		Table: table, Sheet: sheet, Workbook: workbook,
		StartColumn: &col, IsCurrentRow: true,
		Position: span(startTok.Pos(), p.tokens[p.pos-1].Pos()),
	}, nil
}

// readColumnName assembles a structured-reference column name out of
// adjacent tokens up to the closing bracket, since names may contain
// spaces and dashes.
func (p *Parser) readColumnName() string {
	var sb strings.Builder
	prevEnd := -1
	for p.current().Type != TokenRBracket && p.current().Type != TokenEOF {
		tok := p.advance()
		if prevEnd >= 0 && tok.Start > prevEnd {
			sb.WriteByte(' ')
		}
		sb.WriteString(tok.Value)
		prevEnd = tok.End
	}
	return sb.String()
}

// parseBracketPrimary handles every leading-'[' / identifier-then-'['
// shape: Table1[Col], Table1[[#Headers],[Col1]:[Col2]], [#Data],
// [Workbook]Sheet1!A1.
func (p *Parser) parseBracketPrimary(table, sheet *string) (Node, error) {
	startTok := p.current()

	if table == nil && sheet == nil {
		save := p.pos
		p.advance() // '['
		name := p.readColumnName()
		if p.current().Type == TokenRBracket {
			p.advance()
			if p.peekType(0) == TokenIdentifier && p.peekType(1) == TokenExclamation {
				sheetName := unquoteSheetName(p.advance().Value)
				p.advance() // '!'
				workbook := name
				if node, err := p.parseAddressOrRange(&sheetName, &workbook); err == nil {
					return node, nil
				}
			} else if p.peekType(0) == TokenIdentifier && p.peekType(1) == TokenColon && p.peekType(2) == TokenIdentifier && p.peekType(3) == TokenExclamation {
				firstSheet := unquoteSheetName(p.advance().Value)
				p.advance()
				secondSheet := unquoteSheetName(p.advance().Value)
				p.advance()
				workbook := name
				if inner, err := p.parseAddressOrRange(nil, nil); err == nil {
					return &ThreeDRangeNode{StartSheet: firstSheet, EndSheet: secondSheet, Workbook: &workbook, Inner: inner, Position: span(startTok.Pos(), inner.Pos())}, nil
				}
			}
		}
		p.pos = save
	}

	if _, err := p.expect(TokenLBracket, "'['"); err != nil {
		return nil, err
	}

	node := &StructuredReferenceNode{Table: table, Sheet: sheet}

	if p.current().Type == TokenHash {
		selTok := p.advance()
		node.Selector = parseSelector(selTok.Value)
		if p.current().Type == TokenComma {
			p.advance()
			if err := p.parseBracketedColumnPair(node); err != nil {
				return nil, err
			}
		}
	} else if p.current().Type == TokenLBracket {
		if err := p.parseBracketedColumnPair(node); err != nil {
			return nil, err
		}
	} else {
		col := p.readColumnName()
		node.StartColumn = &col
	}

	endTok, err := p.expect(TokenRBracket, "']'")
	if err != nil {
		return nil, err
	}
	node.Position = span(startTok.Pos(), endTok.Pos())
	return node, nil
}

// parseBracketedColumnPair parses "[Col1]" or "[Col1]:[Col2]" into node's
// StartColumn/EndColumn, leaving the parser positioned just before the
// structured reference's closing ']'.
func (p *Parser) parseBracketedColumnPair(node *StructuredReferenceNode) error {
	if _, err := p.expect(TokenLBracket, "'['"); err != nil {
		return err
	}
	col := p.readColumnName()
	node.StartColumn = &col
	if _, err := p.expect(TokenRBracket, "']'"); err != nil {
		return err
	}
	if p.current().Type == TokenColon {
		p.advance()
		if _, err := p.expect(TokenLBracket, "'['"); err != nil {
			return err
		}
		col2 := p.readColumnName()
		node.EndColumn = &col2
		if _, err := p.expect(TokenRBracket, "']'"); err != nil {
			return err
		}
	}
	return nil
}

func parseSelector(s string) StructuredSelector {
	switch strings.ToUpper(s) {
	case "ALL":
		return SelectorAll
	case "DATA":
		return SelectorData
	case "HEADERS":
		return SelectorHeaders
	default:
		return SelectorNone
	}
}
