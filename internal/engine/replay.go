package engine

import (
	"fmt"
	"math"

	"github.com/gogpu/gg"

	"github.com/opd-ai/go-vellogd/internal/protocol"
	"github.com/opd-ai/go-vellogd/internal/scene"
)

// Replay draws cmds onto dc. extra maps device coordinates of the recorded
// scene to dc's pixels; it is the identity for on-screen frames and a scale
// for exports at a different size.
func Replay(dc *gg.Context, cmds []scene.Command, extra scene.Affine) error {
	depth := 0
	for i := range cmds {
		cmd := &cmds[i]
		switch cmd.Op {
		case scene.OpPushClip:
			dc.Push()
			dc.Identity()
			p0 := extra.Apply(cmd.Clip.Min)
			p1 := extra.Apply(cmd.Clip.Max)
			r := protocol.NormalizeRect(p0, p1)
			dc.ClipRect(r.Min.X, r.Min.Y, r.Width(), r.Height())
			depth++
		case scene.OpPopClip:
			if depth == 0 {
				continue
			}
			dc.Pop()
			depth--
		case scene.OpFill:
			dc.SetTransform(toMatrix(cmd.Transform.Then(extra)))
			appendPath(dc, cmd.Path)
			dc.Identity()
			dc.SetFillRule(fillRule(cmd.Rule))
			dc.SetFillBrush(brushFor(cmd.Paint, extra))
			if err := dc.Fill(); err != nil {
				return fmt.Errorf("command %d (%s): %w", i, cmd.Op, err)
			}
		case scene.OpStroke:
			dc.SetTransform(toMatrix(cmd.Transform.Then(extra)))
			appendPath(dc, cmd.Path)
			setStroke(dc, cmd.Stroke)
			dc.SetStrokeBrush(brushFor(cmd.Paint, extra))
			err := dc.Stroke()
			dc.Identity()
			if err != nil {
				return fmt.Errorf("command %d (%s): %w", i, cmd.Op, err)
			}
		case scene.OpImage:
			if cmd.Image == nil {
				continue
			}
			tr := cmd.Transform.Then(extra)
			dc.SetTransform(toMatrix(tr))
			dc.DrawRectangle(0, 0, float64(cmd.Image.Width), float64(cmd.Image.Height))
			dc.Identity()
			dc.SetFillRule(gg.FillRuleNonZero)
			dc.SetFillBrush(imageBrush(cmd.Image, tr))
			if err := dc.Fill(); err != nil {
				return fmt.Errorf("command %d (%s): %w", i, cmd.Op, err)
			}
		}
	}
	for ; depth > 0; depth-- {
		dc.Pop()
	}
	return nil
}

func appendPath(dc *gg.Context, p protocol.Path) {
	dc.ClearPath()
	for _, s := range p.Segments {
		pt := s.Points
		switch s.Op {
		case protocol.OpMoveTo:
			dc.MoveTo(pt[0].X, pt[0].Y)
		case protocol.OpLineTo:
			dc.LineTo(pt[0].X, pt[0].Y)
		case protocol.OpQuadTo:
			dc.QuadraticTo(pt[0].X, pt[0].Y, pt[1].X, pt[1].Y)
		case protocol.OpCubicTo:
			dc.CubicTo(pt[0].X, pt[0].Y, pt[1].X, pt[1].Y, pt[2].X, pt[2].Y)
		case protocol.OpClose:
			dc.ClosePath()
		}
	}
}

func fillRule(r protocol.FillRule) gg.FillRule {
	if r == protocol.EvenOdd {
		return gg.FillRuleEvenOdd
	}
	return gg.FillRuleNonZero
}

// setStroke applies stroke parameters. Widths and dashes are in the
// command's user space; gg scales them by the current transform.
func setStroke(dc *gg.Context, sp protocol.StrokeParams) {
	dc.SetLineWidth(sp.Width)
	switch sp.Cap {
	case protocol.CapButt:
		dc.SetLineCap(gg.LineCapButt)
	case protocol.CapSquare:
		dc.SetLineCap(gg.LineCapSquare)
	default:
		dc.SetLineCap(gg.LineCapRound)
	}
	switch sp.Join {
	case protocol.JoinMiter:
		dc.SetLineJoin(gg.LineJoinMiter)
	case protocol.JoinBevel:
		dc.SetLineJoin(gg.LineJoinBevel)
	default:
		dc.SetLineJoin(gg.LineJoinRound)
	}
	if sp.MiterLimit > 0 && !math.IsInf(sp.MiterLimit, 0) {
		dc.SetMiterLimit(sp.MiterLimit)
	}
	if len(sp.Dash) == 0 {
		dc.ClearDash()
		return
	}
	dc.SetDash(sp.Dash...)
	dc.SetDashOffset(sp.DashOffset)
}
