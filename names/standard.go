package names

// Standard names, pinned at fixed ids in every table.
const (
	_ ID = iota
	Type
	Subtype
	Length
	Filter
	DecodeParms
	Root
	Info
	Size
	Prev
	XRefStm
	Index
	W
	IDKey
	Encrypt
	Catalog
	Pages
	Page
	Kids
	Count
	Parent
	MediaBox
	CropBox
	BleedBox
	TrimBox
	ArtBox
	Rotate
	Resources
	Contents
	Font
	XObject
	ColorSpace
	Pattern
	Shading
	ExtGState
	Properties
	ProcSet
	Image
	Form
	Group
	SMask
	Mask
	ImageMask
	Matrix
	BBox
	Width
	Height
	BitsPerComponent
	Decode
	Interpolate
	ObjStm
	N
	First
	Extends
	XRef
	FlateDecode
	LZWDecode
	ASCIIHexDecode
	ASCII85Decode
	RunLengthDecode
	CCITTFaxDecode
	DCTDecode
	JPXDecode
	JBIG2Decode
	BrotliDecode
	Crypt
	Fl
	LZW
	AHx
	A85
	RL
	CCF
	DCT
	Predictor
	Colors
	BitsPerColumn
	Columns
	EarlyChange
	K
	EndOfLine
	EncodedByteAlign
	Rows
	EndOfBlock
	BlackIs1
	JBIG2Globals
	Name
	StdCF
	Identity
	CF
	StmF
	StrF
	EFF
	V
	R
	O
	U
	OE
	UE
	P
	Perms
	EncryptMetadata
	CFM
	AuthEvent
	Length2
	Standard
	V2
	AESV2
	AESV3
	None
	DeviceGray
	DeviceRGB
	DeviceCMYK
	Indexed
	ICCBased
	CalGray
	CalRGB
	Lab
	Separation
	DeviceN
	G
	RGB
	CMYK
	I
	BaseFont
	Encoding
	Widths
	FirstChar
	LastChar
	FontDescriptor
	ToUnicode
	DescendantFonts
	DW
	MissingWidth
	Type0
	Type1
	Type3
	TrueType
	MMType1
	CIDFontType0
	CIDFontType2
	FontMatrix
	CharProcs
	WinAnsiEncoding
	MacRomanEncoding
	StandardEncoding
	Differences
	IdentityH
	LW
	LC
	LJ
	ML
	D
	RI
	FL
	CA
	FillAlpha // ca
	BM
	TK
	Alpha
	Luminosity
	BC
	TR
	S
	TR2
	PaintType
	TilingType
	XStep
	YStep
	ShadingType
	Linearized
	L
	H
	E
	T
	Producer
	Creator
	Title
	Author
	Subject
	Keywords
	CreationDate
	ModDate
	Annots
	Outlines
	Names
	Dests
	AcroForm
	Metadata
	StructTreeRoot
	MarkInfo
	PageLabels
	OpenAction
	Version
	Lang
	BaseEncoding
	FontFile
	FontFile2
	FontFile3
	Ascent
	Descent
	PatternType
	MCID
	ActualText
	Coords
	Extend
	Function
	FunctionType
	Domain
	Range
	C0
	C1
	Background
	Alternate
	CS
	BPC
	IM
	DP
	F
	Normal
	Isolated
	Knockout
	Functions
	BitsPerSample
	Order
	Transparency
	PS
)

var standard = [...]string{
	"",
	"Type",
	"Subtype",
	"Length",
	"Filter",
	"DecodeParms",
	"Root",
	"Info",
	"Size",
	"Prev",
	"XRefStm",
	"Index",
	"W",
	"ID",
	"Encrypt",
	"Catalog",
	"Pages",
	"Page",
	"Kids",
	"Count",
	"Parent",
	"MediaBox",
	"CropBox",
	"BleedBox",
	"TrimBox",
	"ArtBox",
	"Rotate",
	"Resources",
	"Contents",
	"Font",
	"XObject",
	"ColorSpace",
	"Pattern",
	"Shading",
	"ExtGState",
	"Properties",
	"ProcSet",
	"Image",
	"Form",
	"Group",
	"SMask",
	"Mask",
	"ImageMask",
	"Matrix",
	"BBox",
	"Width",
	"Height",
	"BitsPerComponent",
	"Decode",
	"Interpolate",
	"ObjStm",
	"N",
	"First",
	"Extends",
	"XRef",
	"FlateDecode",
	"LZWDecode",
	"ASCIIHexDecode",
	"ASCII85Decode",
	"RunLengthDecode",
	"CCITTFaxDecode",
	"DCTDecode",
	"JPXDecode",
	"JBIG2Decode",
	"BrotliDecode",
	"Crypt",
	"Fl",
	"LZW",
	"AHx",
	"A85",
	"RL",
	"CCF",
	"DCT",
	"Predictor",
	"Colors",
	"BitsPerColumn",
	"Columns",
	"EarlyChange",
	"K",
	"EndOfLine",
	"EncodedByteAlign",
	"Rows",
	"EndOfBlock",
	"BlackIs1",
	"JBIG2Globals",
	"Name",
	"StdCF",
	"Identity",
	"CF",
	"StmF",
	"StrF",
	"EFF",
	"V",
	"R",
	"O",
	"U",
	"OE",
	"UE",
	"P",
	"Perms",
	"EncryptMetadata",
	"CFM",
	"AuthEvent",
	"Length2",
	"Standard",
	"V2",
	"AESV2",
	"AESV3",
	"None",
	"DeviceGray",
	"DeviceRGB",
	"DeviceCMYK",
	"Indexed",
	"ICCBased",
	"CalGray",
	"CalRGB",
	"Lab",
	"Separation",
	"DeviceN",
	"G",
	"RGB",
	"CMYK",
	"I",
	"BaseFont",
	"Encoding",
	"Widths",
	"FirstChar",
	"LastChar",
	"FontDescriptor",
	"ToUnicode",
	"DescendantFonts",
	"DW",
	"MissingWidth",
	"Type0",
	"Type1",
	"Type3",
	"TrueType",
	"MMType1",
	"CIDFontType0",
	"CIDFontType2",
	"FontMatrix",
	"CharProcs",
	"WinAnsiEncoding",
	"MacRomanEncoding",
	"StandardEncoding",
	"Differences",
	"Identity-H",
	"LW",
	"LC",
	"LJ",
	"ML",
	"D",
	"RI",
	"FL",
	"CA",
	"ca",
	"BM",
	"TK",
	"Alpha",
	"Luminosity",
	"BC",
	"TR",
	"S",
	"TR2",
	"PaintType",
	"TilingType",
	"XStep",
	"YStep",
	"ShadingType",
	"Linearized",
	"L",
	"H",
	"E",
	"T",
	"Producer",
	"Creator",
	"Title",
	"Author",
	"Subject",
	"Keywords",
	"CreationDate",
	"ModDate",
	"Annots",
	"Outlines",
	"Names",
	"Dests",
	"AcroForm",
	"Metadata",
	"StructTreeRoot",
	"MarkInfo",
	"PageLabels",
	"OpenAction",
	"Version",
	"Lang",
	"BaseEncoding",
	"FontFile",
	"FontFile2",
	"FontFile3",
	"Ascent",
	"Descent",
	"PatternType",
	"MCID",
	"ActualText",
	"Coords",
	"Extend",
	"Function",
	"FunctionType",
	"Domain",
	"Range",
	"C0",
	"C1",
	"Background",
	"Alternate",
	"CS",
	"BPC",
	"IM",
	"DP",
	"F",
	"Normal",
	"Isolated",
	"Knockout",
	"Functions",
	"BitsPerSample",
	"Order",
	"Transparency",
	"PS",
}
