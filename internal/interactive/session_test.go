package interactive

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cptspacemanspiff/adjbacklight/internal/backlight"
)

type recordingWriter struct {
	values []int64
	failAt int
}

func (w *recordingWriter) SetCurrent(_ string, value int64) error {
	if w.failAt > 0 && len(w.values)+1 == w.failAt {
		return backlight.ErrWriteFailed
	}
	w.values = append(w.values, value)
	return nil
}

func newTestSession(t *testing.T, cur, maximum int64) (*Session, *recordingWriter, *bytes.Buffer) {
	t.Helper()

	w := &recordingWriter{}
	var out bytes.Buffer
	s := NewSession(w, "intel_backlight", backlight.Reading{Current: cur, Maximum: maximum}, 20, &out)
	return s, w, &out
}

func TestStepSize(t *testing.T) {
	assert.Equal(t, int64(1), StepSize(1))
	assert.Equal(t, int64(1), StepSize(50))
	assert.Equal(t, int64(1), StepSize(399))
	assert.Equal(t, int64(2), StepSize(400))
	assert.Equal(t, int64(5), StepSize(1000))
}

func TestHandleKey_IncreaseAndDecreaseNetOneStep(t *testing.T) {
	s, w, _ := newTestSession(t, 100, 600)
	require.Equal(t, int64(3), s.step)

	for _, key := range []byte{'A', 'C'} {
		before := s.Current()
		require.NoError(t, s.HandleKey(key))
		assert.Equal(t, before+3, s.Current(), "key %q", key)
	}
	for _, key := range []byte{'B', 'D'} {
		before := s.Current()
		require.NoError(t, s.HandleKey(key))
		assert.Equal(t, before-3, s.Current(), "key %q", key)
	}
	assert.Equal(t, []int64{103, 106, 103, 100}, w.values)
	assert.Equal(t, Displaying, s.State())
}

func TestHandleKey_ClampsAtBounds(t *testing.T) {
	s, w, _ := newTestSession(t, 199, 200)

	require.NoError(t, s.HandleKey('A'))
	require.NoError(t, s.HandleKey('A'))
	assert.Equal(t, int64(200), s.Current())

	s, w, _ = newTestSession(t, 0, 200)
	require.NoError(t, s.HandleKey('B'))
	assert.Equal(t, int64(0), s.Current())
	assert.Equal(t, []int64{0}, w.values)
}

func TestHandleKey_IgnoresOtherKeys(t *testing.T) {
	s, w, out := newTestSession(t, 50, 100)
	out.Reset()

	for _, key := range []byte{0x1b, '[', 'x', ' ', 'Q'} {
		require.NoError(t, s.HandleKey(key))
	}
	assert.Empty(t, w.values)
	assert.Zero(t, out.Len())
	assert.Equal(t, int64(50), s.Current())
}

func TestRun_ArrowSequencesAndQuit(t *testing.T) {
	for _, quit := range []string{"q", "\n", "\r", "\x03", "\x04"} {
		s, w, _ := newTestSession(t, 10, 100)
		in := strings.NewReader("\x1b[A\x1b[A\x1b[B" + quit + "\x1b[A")

		require.NoError(t, s.Run(in))
		assert.Equal(t, []int64{11, 12, 11}, w.values, "quit %q", quit)
		assert.Equal(t, Terminated, s.State())
	}
}

func TestRun_EndOfInput(t *testing.T) {
	s, w, _ := newTestSession(t, 10, 100)

	require.NoError(t, s.Run(strings.NewReader("CC")))
	assert.Equal(t, []int64{11, 12}, w.values)
	assert.Equal(t, Terminated, s.State())
}

func TestRun_WriteFailureEndsSession(t *testing.T) {
	w := &recordingWriter{failAt: 2}
	var out bytes.Buffer
	s := NewSession(w, "dev", backlight.Reading{Current: 10, Maximum: 100}, 20, &out)

	err := s.Run(strings.NewReader("AAAA"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, backlight.ErrWriteFailed))
	assert.Equal(t, []int64{11}, w.values)
	assert.Equal(t, Terminated, s.State())
}

func TestRender_Block(t *testing.T) {
	s, _, out := newTestSession(t, 50, 100)
	require.NoError(t, s.Run(strings.NewReader("")))

	got := out.String()
	require.True(t, strings.HasPrefix(got, "\n\n\n\n\n\n\033[20D\033[6A"), "got %q", got)

	lines := strings.Split(strings.TrimPrefix(got, "\n\n\n\n\n\n\033[20D\033[6A"), "\n")
	require.Len(t, lines, BlockLines+1)
	assert.Equal(t, "\033[2K┌"+strings.Repeat("─", 18)+"┐", lines[0])
	assert.Equal(t, "\033[2K│\033[47m"+strings.Repeat(" ", 9)+"\033[49m"+strings.Repeat(" ", 9)+"│", lines[1])
	assert.Equal(t, "\033[2K└"+strings.Repeat("─", 18)+"┘", lines[2])
	assert.Equal(t, "\033[2KMaximum brightness: 100", lines[3])
	assert.Equal(t, "\033[2KInitial brightness: 50", lines[4])
	assert.Equal(t, "\033[2KCurrent brightness: 50", lines[5])
	assert.Equal(t, "", lines[6])
}

func TestBarFill(t *testing.T) {
	b := newBar(20)
	assert.Equal(t, 0, b.fill(0, 100))
	assert.Equal(t, 18, b.fill(100, 100))
	assert.Equal(t, 9, b.fill(50, 100))
	assert.Equal(t, 1, b.fill(1, 18))

	tiny := newBar(0)
	assert.Equal(t, minCols, tiny.cols)
	assert.Equal(t, 1, tiny.fill(1, 1))
}

func TestRender_RedrawsInPlace(t *testing.T) {
	s, _, out := newTestSession(t, 50, 100)
	require.NoError(t, s.Run(strings.NewReader("AB")))

	assert.Equal(t, 3, strings.Count(out.String(), "\033[20D\033[6A"))
	assert.Equal(t, 3, strings.Count(out.String(), "Current brightness"))
}
