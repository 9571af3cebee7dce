package contentstream

// Op is a content-stream operator.
type Op uint8

const (
	OpUnknown Op = iota

	// Graphics state.
	OpSave       // q
	OpRestore    // Q
	OpConcat     // cm
	OpLineWidth  // w
	OpLineCap    // J
	OpLineJoin   // j
	OpMiterLimit // M
	OpDash       // d
	OpIntent     // ri
	OpFlatness   // i
	OpExtGState  // gs

	// Path construction.
	OpMoveTo    // m
	OpLineTo    // l
	OpCurveTo   // c
	OpCurveToV  // v
	OpCurveToY  // y
	OpClosePath // h
	OpRect      // re

	// Path painting.
	OpStroke            // S
	OpCloseStroke       // s
	OpFill              // f
	OpFillCompat        // F
	OpFillEvenOdd       // f*
	OpFillStroke        // B
	OpFillStrokeEO      // B*
	OpCloseFillStroke   // b
	OpCloseFillStrokeEO // b*
	OpEndPath           // n

	// Clipping.
	OpClip        // W
	OpClipEvenOdd // W*

	// Text objects and state.
	OpBeginText  // BT
	OpEndText    // ET
	OpCharSpace  // Tc
	OpWordSpace  // Tw
	OpHScale     // Tz
	OpLeading    // TL
	OpFont       // Tf
	OpRender     // Tr
	OpRise       // Ts
	OpMoveText   // Td
	OpMoveTextTL // TD
	OpTextMatrix // Tm
	OpNextLine   // T*
	OpShow       // Tj
	OpShowArray  // TJ
	OpNextShow   // '
	OpSpaceShow  // "

	// Type 3 glyphs.
	OpGlyphWidth // d0
	OpGlyphBBox  // d1

	// Color.
	OpStrokeSpace  // CS
	OpFillSpace    // cs
	OpStrokeColor  // SC
	OpStrokeColorN // SCN
	OpFillColor    // sc
	OpFillColorN   // scn
	OpStrokeGray   // G
	OpFillGray     // g
	OpStrokeRGB    // RG
	OpFillRGB      // rg
	OpStrokeCMYK   // K
	OpFillCMYK     // k

	// XObjects, inline images and shadings.
	OpXObject    // Do
	OpBeginImage // BI
	OpImageData  // ID
	OpEndImage   // EI
	OpShade      // sh

	// Marked content.
	OpMarkPoint       // MP
	OpMarkPointDict   // DP
	OpBeginMarked     // BMC
	OpBeginMarkedDict // BDC
	OpEndMarked       // EMC

	// Compatibility.
	OpBeginCompat // BX
	OpEndCompat   // EX

	numOps
)

var opNames = [numOps]string{
	OpUnknown: "?",
	OpSave: "q", OpRestore: "Q", OpConcat: "cm", OpLineWidth: "w", OpLineCap: "J",
	OpLineJoin: "j", OpMiterLimit: "M", OpDash: "d", OpIntent: "ri", OpFlatness: "i",
	OpExtGState: "gs",
	OpMoveTo: "m", OpLineTo: "l", OpCurveTo: "c", OpCurveToV: "v", OpCurveToY: "y",
	OpClosePath: "h", OpRect: "re",
	OpStroke: "S", OpCloseStroke: "s", OpFill: "f", OpFillCompat: "F", OpFillEvenOdd: "f*",
	OpFillStroke: "B", OpFillStrokeEO: "B*", OpCloseFillStroke: "b", OpCloseFillStrokeEO: "b*",
	OpEndPath: "n",
	OpClip: "W", OpClipEvenOdd: "W*",
	OpBeginText: "BT", OpEndText: "ET", OpCharSpace: "Tc", OpWordSpace: "Tw", OpHScale: "Tz",
	OpLeading: "TL", OpFont: "Tf", OpRender: "Tr", OpRise: "Ts", OpMoveText: "Td",
	OpMoveTextTL: "TD", OpTextMatrix: "Tm", OpNextLine: "T*", OpShow: "Tj", OpShowArray: "TJ",
	OpNextShow: "'", OpSpaceShow: "\"",
	OpGlyphWidth: "d0", OpGlyphBBox: "d1",
	OpStrokeSpace: "CS", OpFillSpace: "cs", OpStrokeColor: "SC", OpStrokeColorN: "SCN",
	OpFillColor: "sc", OpFillColorN: "scn", OpStrokeGray: "G", OpFillGray: "g",
	OpStrokeRGB: "RG", OpFillRGB: "rg", OpStrokeCMYK: "K", OpFillCMYK: "k",
	OpXObject: "Do", OpBeginImage: "BI", OpImageData: "ID", OpEndImage: "EI", OpShade: "sh",
	OpMarkPoint: "MP", OpMarkPointDict: "DP", OpBeginMarked: "BMC", OpBeginMarkedDict: "BDC",
	OpEndMarked: "EMC",
	OpBeginCompat: "BX", OpEndCompat: "EX",
}

func (o Op) String() string {
	if o < numOps {
		return opNames[o]
	}
	return "?"
}

// arity is the operand count each operator requires; -1 means variable.
var arity = [numOps]int8{
	OpSave: 0, OpRestore: 0, OpConcat: 6, OpLineWidth: 1, OpLineCap: 1, OpLineJoin: 1,
	OpMiterLimit: 1, OpDash: 2, OpIntent: 1, OpFlatness: 1, OpExtGState: 1,
	OpMoveTo: 2, OpLineTo: 2, OpCurveTo: 6, OpCurveToV: 4, OpCurveToY: 4, OpRect: 4,
	OpCharSpace: 1, OpWordSpace: 1, OpHScale: 1, OpLeading: 1, OpFont: 2, OpRender: 1,
	OpRise: 1, OpMoveText: 2, OpMoveTextTL: 2, OpTextMatrix: 6,
	OpShow: 1, OpShowArray: 1, OpNextShow: 1, OpSpaceShow: 3,
	OpGlyphWidth: 2, OpGlyphBBox: 6,
	OpStrokeSpace: 1, OpFillSpace: 1, OpStrokeColor: -1, OpStrokeColorN: -1,
	OpFillColor: -1, OpFillColorN: -1, OpStrokeGray: 1, OpFillGray: 1,
	OpStrokeRGB: 3, OpFillRGB: 3, OpStrokeCMYK: 4, OpFillCMYK: 4,
	OpXObject: 1, OpShade: 1,
	OpMarkPoint: 1, OpMarkPointDict: 2, OpBeginMarked: 1, OpBeginMarkedDict: 2,
}

var opIndex = func() map[string]Op {
	m := make(map[string]Op, numOps)
	for op := OpUnknown + 1; op < numOps; op++ {
		m[opNames[op]] = op
	}
	return m
}()

// lookupOp decodes an operator keyword.
func lookupOp(b []byte) Op {
	if op, ok := opIndex[string(b)]; ok {
		return op
	}
	return OpUnknown
}

// paints reports whether op ends a path.
func (o Op) paints() bool { return o >= OpStroke && o <= OpEndPath }

// showsText reports whether op paints glyphs.
func (o Op) showsText() bool { return o >= OpShow && o <= OpSpaceShow }
