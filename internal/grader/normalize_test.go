package grader

import "testing"

func TestParseNumber(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{"-3.5", -3.5, true},
		{"2,5", 2.5, true},
		{"1,500", 1500, true},
		{"1/3", 1.0 / 3.0, true},
		{"-1/2", -0.5, true},
		{"25%", 0.25, true},
		{"50 %", 0.5, true},
		{"", 0, false},
		{"x+2", 0, false},
		{"1/0", 0, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseNumber(tc.in)
			if ok != tc.ok {
				t.Fatalf("ParseNumber(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			}
			if ok && !NumbersEqual(got, tc.want) {
				t.Fatalf("ParseNumber(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestNumbersEqual(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b float64
		want bool
	}{
		{"identical", 42, 42, true},
		{"tiny absolute drift", 0, 1e-9, true},
		{"relative drift", 1000, 1000.5, true},
		{"rounded fraction", 0.3333, 1.0 / 3.0, true},
		{"off by one", 42, 43, false},
		{"sign flip", 0.5, -0.5, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NumbersEqual(tc.a, tc.b); got != tc.want {
				t.Fatalf("NumbersEqual(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestCanonicalExpression(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b string
	}{
		{"spacing", "x + 2", "x+2"},
		{"term order", "2+x", "x+2"},
		{"case", "X+2", "x+2"},
		{"explicit multiplication", `2 \cdot x`, "2*x"},
		{"latex fraction", `\frac{5}{6}`, "5/6"},
		{"nested fraction", `\frac{x+1}{\frac{1}{2}}`, "(x+1)/(1/2)"},
		{"sqrt", `\sqrt{2}`, "sqrt(2)"},
		{"decimal comma", "0,5", "0.5"},
		{"trailing zeros", "0.50", "0.5"},
		{"dollar wrap", "$x+2$", "x+2"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ca, cb := CanonicalExpression(tc.a), CanonicalExpression(tc.b)
			if ca != cb {
				t.Fatalf("CanonicalExpression(%q) = %q, CanonicalExpression(%q) = %q; want equal", tc.a, ca, tc.b, cb)
			}
		})
	}

	distinct := [][2]string{
		{"x+2", "x+3"},
		{"sqrt(2)", "sqrt(3)"},
		{"x/2", "2/x"},
	}
	for _, p := range distinct {
		if CanonicalExpression(p[0]) == CanonicalExpression(p[1]) {
			t.Fatalf("%q and %q canonicalize to the same form", p[0], p[1])
		}
	}
}

func TestExtractAnswer(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"russian marker", "Решение длинное.\nОтвет: 42", "42", true},
		{"english marker", "So the answer is 7", "7", true},
		{"last marker wins", "Ответ: 1\nНет, пересчитаем.\nОтвет: 2", "2", true},
		{"boxed inside marker span", `Ответ: \boxed{15}`, "15", true},
		{"boxed without marker", `Получаем \boxed{x^2}`, "x^2", true},
		{"nested boxed braces", `\boxed{\frac{1}{2}}`, `\frac{1}{2}`, true},
		{"last number fallback", "Сначала 10, потом 20", "20", true},
		{"trailing period", "Ответ: 3.14.", "3.14", true},
		{"marker then blank line", "Ответ: 8\n\nПроверка: подставим.", "8", true},
		{"empty", "", "", false},
		{"no answer", "Не могу решить эту задачу", "", false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ExtractAnswer(tc.in)
			if ok != tc.ok {
				t.Fatalf("ExtractAnswer(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			}
			if got != tc.want {
				t.Fatalf("ExtractAnswer(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCanonicalChoice(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"A", "A", true},
		{"b", "B", true},
		{"Б", "B", true},
		{"в", "C", true},
		{"(Г)", "D", true},
		{"E.", "E", true},
		{"F", "", false},
		{"AB", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, ok := CanonicalChoice(tc.in)
			if ok != tc.ok {
				t.Fatalf("CanonicalChoice(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			}
			if got != tc.want {
				t.Fatalf("CanonicalChoice(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
