package interpreter

import "github.com/weftlang/weft/ast"

func (e *Evaluator) applyFunction(fn Value, args []Value) (Value, *Signal, error) {
	switch f := fn.(type) {
	case *Builtin:
		val, err := f.Fn(e, args)
		return val, nil, err
	case *Function:
		if len(args) != len(f.Params) {
			return nil, nil, &RuntimeError{Message: "wrong number of arguments"}
		}
		extended := NewEnclosedEnvironment(f.Env)
		for i, param := range f.Params {
			ok, err := bindPattern(param, args[i], extended)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				return nil, nil, &RuntimeError{Message: "parameter pattern did not match"}
			}
		}
		e.pushDebugFrame("", f.Body, extended)
		val, sig, err := e.Eval(f.Body, extended)
		e.popDebugFrame()
		if err != nil {
			return nil, nil, err
		}
		if sig != nil {
			return nil, nil, &RuntimeError{Message: "break/continue outside loop"}
		}
		return val, nil, nil
	case *Partial:
		filled := []Value{}
		argIndex := 0
		for _, arg := range f.Args {
			if arg == nil {
				if argIndex >= len(args) {
					return nil, nil, &RuntimeError{Message: "not enough arguments for partial"}
				}
				filled = append(filled, args[argIndex])
				argIndex++
				continue
			}
			filled = append(filled, arg)
		}
		if argIndex != len(args) {
			return nil, nil, &RuntimeError{Message: "too many arguments for partial"}
		}
		return e.applyFunction(f.Target, filled)
	case *ShapeValue:
		if len(args) != 1 {
			return nil, nil, &RuntimeError{Message: "shape call expects 1 argument"}
		}
		val, err := applyShape(args[0], f.Shape)
		return val, nil, err
	default:
		return nil, nil, &RuntimeError{Message: "not a function"}
	}
}

func (e *Evaluator) arrayMethod(arr *Array, name string) (Value, *Signal, error) {
	switch name {
	case "map", "filter", "reduce", "sum", "find", "sort":
		builtin := getBuiltin(name)
		if builtin == nil {
			return nil, nil, &RuntimeError{Message: "unknown builtin: " + name}
		}
		return &Builtin{Name: name, Fn: bindReceiver(builtin.Fn, arr)}, nil, nil
	default:
		return nil, nil, &RuntimeError{Message: "unknown array member: " + name}
	}
}

func (e *Evaluator) channelMethod(ch *Channel, name string) (Value, *Signal, error) {
	switch name {
	case "send", "recv", "done":
		builtin := getBuiltin(name)
		if builtin == nil {
			return nil, nil, &RuntimeError{Message: "unknown builtin: " + name}
		}
		return &Builtin{Name: name, Fn: bindReceiver(builtin.Fn, ch)}, nil, nil
	default:
		return nil, nil, &RuntimeError{Message: "unknown channel member: " + name}
	}
}

func (e *Evaluator) stringMethod(str *String, name string) (Value, *Signal, error) {
	switch name {
	case "split", "chars", "trim", "toLower", "toUpper", "contains", "startsWith", "endsWith", "replace":
		builtin := getBuiltin(name)
		if builtin == nil {
			return nil, nil, &RuntimeError{Message: "unknown builtin: " + name}
		}
		return &Builtin{Name: name, Fn: bindReceiver(builtin.Fn, str)}, nil, nil
	default:
		return nil, nil, &RuntimeError{Message: "unknown string member: " + name}
	}
}

func (e *Evaluator) mapMethod(m *Map, name string) (Value, *Signal, error) {
	switch name {
	case "get", "set", "has", "delete", "keys", "values":
		builtin := getBuiltin(name)
		if builtin == nil {
			return nil, nil, &RuntimeError{Message: "unknown builtin: " + name}
		}
		return &Builtin{Name: name, Fn: bindReceiver(builtin.Fn, m)}, nil, nil
	default:
		return nil, nil, &RuntimeError{Message: "unknown map member: " + name}
	}
}

func (e *Evaluator) setMethod(s *Set, name string) (Value, *Signal, error) {
	switch name {
	case "add", "has", "delete", "values":
		builtin := getBuiltin(name)
		if builtin == nil {
			return nil, nil, &RuntimeError{Message: "unknown builtin: " + name}
		}
		return &Builtin{Name: name, Fn: bindReceiver(builtin.Fn, s)}, nil, nil
	default:
		return nil, nil, &RuntimeError{Message: "unknown set member: " + name}
	}
}

func (e *Evaluator) taskMethod(t *Task, name string) (Value, *Signal, error) {
	switch name {
	case "then":
		builtin := getBuiltin(name)
		if builtin == nil {
			return nil, nil, &RuntimeError{Message: "unknown builtin: " + name}
		}
		return &Builtin{Name: name, Fn: bindReceiver(builtin.Fn, t)}, nil, nil
	case "cancel":
		return &Builtin{
			Name: "cancel",
			Fn: func(_ *Evaluator, args []Value) (Value, error) {
				if len(args) != 0 {
					return nil, &RuntimeError{Message: "cancel expects no arguments"}
				}
				t.Cancel()
				return UnitValue, nil
			},
		}, nil, nil
	default:
		return nil, nil, &RuntimeError{Message: "unknown task member: " + name}
	}
}

func bindPattern(pattern ast.Pattern, value Value, env *Environment) (bool, error) {
	return matchPattern(pattern, value, env)
}
