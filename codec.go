package bfopt

import (
	"fmt"
	"strconv"
	str "strings"

	"github.com/coregx/coregex"
)

// Decode reads the persisted single-line opcode encoding back into an
// OpcodeStream. Every token matches `[0-9_]* <letter>`; anything the
// tokenizer cannot account for is a fatal decode error, raised before any
// execution happens.

var ErrDecode error = fmt.Errorf("Opcode text contains an unrecognized token")

var tokenPattern = mustCompile(`[0-9_]*[\[\]aAsSZC+<>.,-]`)

func mustCompile(pattern string) *coregex.Regexp {
	re, err := coregex.Compile(pattern)
	if err != nil {
		panic(fmt.Sprintf("Failed to compile token pattern [%s]: %v", pattern, err))
	}
	return re
}

func Decode(text string) (OpcodeStream, error) {
	text = str.TrimSpace(text)
	if len(text) == 0 {
		return OpcodeStream{}, nil
	}

	matches := tokenPattern.FindAllStringIndex(text, -1)

	stream := make(OpcodeStream, 0, len(matches))
	cursor := 0
	for _, m := range matches {
		if m[0] != cursor {
			return nil, fmt.Errorf("%w: unparseable text [%s] at offset [%d]", ErrDecode, text[cursor:m[0]], cursor)
		}
		ins, err := decodeToken(text[m[0]:m[1]], m[0])
		if err != nil {
			return nil, err
		}
		stream = append(stream, ins)
		cursor = m[1]
	}

	if cursor != len(text) {
		return nil, fmt.Errorf("%w: unparseable text [%s] at offset [%d]", ErrDecode, text[cursor:], cursor)
	}

	return stream, nil
}

func decodeToken(token string, offset int) (Instruction, error) {
	letter := token[len(token)-1]
	params, err := decodeParams(token[:len(token)-1], token, offset)
	if err != nil {
		return Instruction{}, err
	}

	fail := func(want string) (Instruction, error) {
		return Instruction{}, fmt.Errorf("%w: token [%s] at offset [%d] wants %s parameters, has [%d]",
			ErrDecode, token, offset, want, len(params))
	}

	switch letter {
	case '+', '-', '<', '>':
		amount := 1
		switch len(params) {
		case 0:
		case 1:
			amount = params[0]
		default:
			return fail("0 or 1")
		}
		if amount < 1 {
			return Instruction{}, fmt.Errorf("%w: token [%s] at offset [%d] has a zero repeat", ErrDecode, token, offset)
		}
		switch letter {
		case '+':
			return NewInc(amount), nil
		case '-':
			return NewDec(amount), nil
		case '<':
			return NewPointerLeft(amount), nil
		default:
			return NewPointerRight(amount), nil
		}
	case 'a', 'A', 's', 'S':
		multiplier, places := 1, 0
		switch len(params) {
		case 1:
			places = params[0]
		case 2:
			multiplier, places = params[0], params[1]
		default:
			return fail("1 or 2")
		}
		if places < 1 || multiplier < 1 {
			return Instruction{}, fmt.Errorf("%w: token [%s] at offset [%d] has a zero parameter", ErrDecode, token, offset)
		}
		switch letter {
		case 'a':
			return NewMoveAddLeft(places, multiplier), nil
		case 'A':
			return NewMoveAddRight(places, multiplier), nil
		case 's':
			return NewMoveSubLeft(places, multiplier), nil
		default:
			return NewMoveSubRight(places, multiplier), nil
		}
	case 'C':
		if len(params) != 3 {
			return fail("3")
		}
		copies, stride, from := params[0], params[1], params[2]
		if copies < 1 || stride < 1 || from < 0 {
			return Instruction{}, fmt.Errorf("%w: token [%s] at offset [%d] has an out of range parameter", ErrDecode, token, offset)
		}
		return NewCopy(copies, stride, from), nil
	case 'Z', '[', ']', '.', ',':
		if len(params) != 0 {
			return fail("0")
		}
		switch letter {
		case 'Z':
			return NewZero(), nil
		case '[':
			return NewWhile(), nil
		case ']':
			return NewWhileEnd(), nil
		case '.':
			return NewOutput(), nil
		default:
			return NewInput(), nil
		}
	}

	return Instruction{}, fmt.Errorf("%w: token [%s] at offset [%d]", ErrDecode, token, offset)
}

func decodeParams(prefix, token string, offset int) ([]int, error) {
	if len(prefix) == 0 {
		return nil, nil
	}
	parts := str.Split(prefix, "_")
	params := make([]int, len(parts))
	for i, part := range parts {
		if len(part) == 0 {
			return nil, fmt.Errorf("%w: token [%s] at offset [%d] has an empty parameter", ErrDecode, token, offset)
		}
		val, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: token [%s] at offset [%d] has a bad parameter [%s]", ErrDecode, token, offset, part)
		}
		params[i] = val
	}
	return params, nil
}
