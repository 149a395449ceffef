package pe

import "encoding/binary"

// image is a flat image under construction where RVA == file offset.
type image []byte

func newImage(size int) image {
	return make(image, size)
}

func (im image) u16(at int, v uint16) image {
	binary.LittleEndian.PutUint16(im[at:], v)
	return im
}

func (im image) u32(at int, v uint32) image {
	binary.LittleEndian.PutUint32(im[at:], v)
	return im
}

func (im image) u64(at int, v uint64) image {
	binary.LittleEndian.PutUint64(im[at:], v)
	return im
}

// str writes s followed by a NUL.
func (im image) str(at int, s string) image {
	copy(im[at:], s)
	im[at+len(s)] = 0
	return im
}

func (im image) hintName(at int, hint uint16, name string) image {
	return im.u16(at, hint).str(at+2, name)
}

func (im image) descriptor(at int, ilt, forwarder, name, iat uint32) image {
	return im.u32(at, ilt).u32(at+4, 0).u32(at+8, forwarder).u32(at+12, name).u32(at+16, iat)
}

// entries writes a lookup table of the given width.
func (im image) entries(at int, width int, values ...uint64) image {
	for i, v := range values {
		if width == 8 {
			im.u64(at+i*8, v)
		} else {
			im.u32(at+i*4, uint32(v))
		}
	}
	return im
}

func (im image) location(va uint32) DirectoryLocation {
	return DirectoryLocation{VirtualAddress: va, FileOffset: va, FileSize: int64(len(im))}
}
