package registry

import "fmt"

// C3Linearize computes the C3 method resolution order for a class named
// name whose direct bases (in declaration order) are baseNames, given each
// base's own already-computed MRO in baseMROs (parallel to baseNames). It
// is computed once at class creation and cached, not recomputed per
// attribute lookup; the VM's BUILD_CLASS opcode is the only caller. This is
// the same C3 merge CPython uses for `class C(A, B): ...`.
func C3Linearize(name string, baseNames []string, baseMROs [][]string) ([]string, error) {
	sequences := make([][]string, 0, len(baseMROs)+1)
	for _, mro := range baseMROs {
		if len(mro) > 0 {
			sequences = append(sequences, append([]string(nil), mro...))
		}
	}
	if len(baseNames) > 0 {
		sequences = append(sequences, append([]string(nil), baseNames...))
	}

	result := []string{name}
	for {
		sequences = pruneEmpty(sequences)
		if len(sequences) == 0 {
			break
		}
		head, err := selectHead(sequences)
		if err != nil {
			return nil, fmt.Errorf("cannot create a consistent method resolution order (MRO) for bases of %s", name)
		}
		result = append(result, head)
		for i, seq := range sequences {
			sequences[i] = removeHead(seq, head)
		}
	}
	return result, nil
}

func pruneEmpty(sequences [][]string) [][]string {
	out := sequences[:0]
	for _, s := range sequences {
		if len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

// selectHead finds a candidate appearing at the head of some sequence and
// nowhere else in the tail of any sequence, the C3 "good head" rule.
func selectHead(sequences [][]string) (string, error) {
	for _, seq := range sequences {
		candidate := seq[0]
		if !appearsInTail(sequences, candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no consistent head")
}

func appearsInTail(sequences [][]string, candidate string) bool {
	for _, seq := range sequences {
		for _, name := range seq[1:] {
			if name == candidate {
				return true
			}
		}
	}
	return false
}

func removeHead(seq []string, head string) []string {
	if len(seq) > 0 && seq[0] == head {
		return seq[1:]
	}
	return seq
}
