package console

import (
	"fmt"
	"io"
	"time"

	"github.com/liao/sqlchat/internal/pipeline"
)

// Progress 在每个阶段开始时打印一行提示
type Progress struct {
	out io.Writer
}

func NewProgress(out io.Writer) *Progress {
	return &Progress{out: out}
}

func (p *Progress) Transition(_, to pipeline.State) {
	switch to {
	case pipeline.StateGeneratingQuery:
		fmt.Fprintln(p.out, "... generating SQL")
	case pipeline.StateExecutingQuery:
		fmt.Fprintln(p.out, "... running query")
	case pipeline.StateHumanizing:
		fmt.Fprintln(p.out, "... writing answer")
	}
}

func (p *Progress) StageDone(pipeline.State, time.Duration, error) {}
