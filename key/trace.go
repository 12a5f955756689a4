package key

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteTrace writes a readable dump of every hashed field to w.
func (in *Inputs) WriteTrace(w io.Writer) error {
	var b strings.Builder
	field := func(name, value string) {
		fmt.Fprintf(&b, "%s: %s\n%s\n", name, value, Separator)
	}

	field("source", strconv.Quote(string(in.Source)))
	field("options", strconv.Quote(in.Options))
	field("internal options", strconv.Quote(in.InternalOptions))
	field("spec const ids", fmt.Sprint(in.SpecConstIDs))
	field("spec const values", fmt.Sprint(in.SpecConstValues))

	p := in.Hardware.Platform
	field("platform", fmt.Sprintf(
		"product=%d pch=%d display=%d render=%d type=%d device=%#x revision=%d devicePCH=%#x revisionPCH=%d gt=%d",
		p.ProductFamily, p.PCHProductFamily, p.DisplayCoreFamily, p.RenderCoreFamily, p.PlatformType,
		p.DeviceID, p.RevisionID, p.DeviceIDPCH, p.RevisionIDPCH, p.GTType))
	field("feature table", fmt.Sprintf("%#016x", in.Hardware.Features.Checksum()))
	field("workaround table", fmt.Sprintf("%#016x", in.Hardware.Workarounds.Checksum()))
	ip := in.Hardware.IPVersion
	field("ip version", fmt.Sprintf("%d.%d.%d", ip.Architecture, ip.Release, ip.Revision))

	field("compiler revision", strconv.Quote(in.CompilerRevision))
	field("compiler library size", strconv.FormatUint(in.CompilerLibrarySize, 10))
	field("compiler library mtime", strconv.FormatInt(in.CompilerLibraryModTime, 10))

	_, err := io.WriteString(w, b.String())
	return err
}
