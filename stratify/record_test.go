package stratify

import (
	"fmt"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func samLine(name string, flag int, seq, qual string) string {
	return fmt.Sprintf("%s\t%d\tchr1\t100\t42\t%dM\t*\t0\t0\t%s\t%s", name, flag, len(seq), seq, qual)
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		line string
		want Record
		bad  bool
	}{
		{
			line: samLine("r1", 0, "ACGTN", "IIII#"),
			want: Record{Name: "r1", Flag: 0, Seq: "ACGTN", Qual: "IIII#"},
		},
		{
			line: samLine("r2", 4, "ACG", "555") + "\n",
			want: Record{Name: "r2", Flag: 4, Seq: "ACG", Qual: "555"},
		},
		{
			line: samLine("r3", 16, "AC", "II") + "\tAS:i:-3\tXN:i:0\r\n",
			want: Record{Name: "r3", Flag: 16, Seq: "AC", Qual: "II"},
		},
		{line: "r4\t0\tchr1\t100", bad: true},
		{line: "r5\tzero\tchr1\t100\t42\t2M\t*\t0\t0\tAC\tII", bad: true},
		{line: "", bad: true},
	}
	for _, test := range tests {
		r, err := ParseRecord([]byte(test.line))
		if test.bad {
			_, ok := err.(*MalformedError)
			expect.True(t, ok, "line %q: err %v", test.line, err)
			continue
		}
		assert.NoError(t, err)
		expect.EQ(t, r, test.want)
	}
}

func TestQuals(t *testing.T) {
	qs, err := Quals("5")
	assert.NoError(t, err)
	expect.EQ(t, qs, []int{20})
	expect.EQ(t, Mean(qs), 20)
	expect.EQ(t, Median(qs), 20)

	qs, err = Quals("!+5?I")
	assert.NoError(t, err)
	expect.EQ(t, qs, []int{0, 10, 20, 30, 40})

	_, err = Quals("II I")
	_, ok := err.(*MalformedError)
	expect.True(t, ok)
	_, err = Quals("")
	expect.True(t, err != nil)
}

func TestMeanMedian(t *testing.T) {
	tests := []struct {
		qs           []int
		mean, median int
	}{
		{[]int{7}, 7, 7},
		{[]int{1, 2}, 2, 2}, // 1.5 rounds away from zero; upper median.
		{[]int{30, 10, 20}, 20, 20},
		{[]int{40, 40, 2, 2}, 21, 40},
		{[]int{0, 0, 0, 1}, 0, 0},
	}
	for _, test := range tests {
		expect.EQ(t, Mean(test.qs), test.mean, "mean %v", test.qs)
		expect.EQ(t, Median(test.qs), test.median, "median %v", test.qs)
	}
	// Median must not reorder its argument.
	qs := []int{3, 1, 2}
	Median(qs)
	expect.EQ(t, qs, []int{3, 1, 2})
}

func TestNCount(t *testing.T) {
	expect.EQ(t, NCount("ACGT"), 0)
	expect.EQ(t, NCount("NACN.T"), 3)
	expect.EQ(t, NCount(""), 0)
}

func TestUnaligned(t *testing.T) {
	expect.True(t, Record{Flag: 4}.Unaligned())
	expect.False(t, Record{Flag: 0}.Unaligned())
	expect.False(t, Record{Flag: 4 | 256}.Unaligned())
}
