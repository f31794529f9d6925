package lift

import (
	"github.com/mewmew/pcode/bin"
	"github.com/mewmew/pcode/pcode"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FlowResolver", func() {
	var fr *FlowResolver

	BeforeEach(func() {
		fr = &FlowResolver{}
	})

	resolve := func(next bin.Addr, ops ...*pcode.Op) *Instruction {
		pcode.Ops(ops).Replay(fr)
		inst := &Instruction{Addr: next - 2}
		fr.Resolve(next, inst)
		return inst
	}

	DescribeTable("classifies a single control transfer",
		func(opcode pcode.OpCode, target pcode.Varnode, want Category, wantTarget bin.Addr) {
			in := []pcode.Varnode{target}
			if opcode == pcode.CBRANCH {
				in = append(in, pcode.NewRegister(0x200, 1))
			}
			inst := resolve(0x1002, op(opcode, nil, in...))
			Expect(inst.Category).To(Equal(want))
			Expect(inst.Target).To(Equal(wantTarget))
			Expect(inst.Fallthrough).To(Equal(bin.Addr(0x1002)))
		},
		Entry("constant branch", pcode.BRANCH, pcode.NewConstant(0x2000, 4), CategoryDirectBranch, bin.Addr(0x2000)),
		Entry("absolute branch", pcode.BRANCH, pcode.NewMemory(0x2000, 4), CategoryDirectBranch, bin.Addr(0x2000)),
		Entry("absolute call", pcode.CALL, pcode.NewMemory(0x3000, 4), CategoryDirectCall, bin.Addr(0x3000)),
		Entry("constant indirect call", pcode.CALLIND, pcode.NewConstant(0x3000, 4), CategoryDirectCall, bin.Addr(0x3000)),
		Entry("absolute conditional branch", pcode.CBRANCH, pcode.NewMemory(0x4000, 4), CategoryDirectConditionalBranch, bin.Addr(0x4000)),
		Entry("register branch", pcode.BRANCHIND, pcode.NewRegister(0x0, 4), CategoryIndirectBranch, bin.Addr(0)),
		Entry("memory indirect branch", pcode.BRANCHIND, pcode.NewMemory(0x2000, 4), CategoryIndirectBranch, bin.Addr(0)),
		Entry("register call", pcode.CALLIND, pcode.NewRegister(0x0, 4), CategoryIndirectCall, bin.Addr(0)),
		Entry("return", pcode.RETURN, pcode.NewScratch(0x80, 4), CategoryIndirectReturn, bin.Addr(0)),
	)

	It("should classify instructions without control transfer as normal", func() {
		inst := resolve(0x1002,
			op(pcode.COPY, out(pcode.NewRegister(0x0, 4)), pcode.NewConstant(5, 4)),
		)
		Expect(inst.Category).To(Equal(CategoryNormal))
	})

	It("should degrade a conditional branch to the next instruction", func() {
		inst := resolve(0x1002,
			op(pcode.CBRANCH, nil, pcode.NewMemory(0x1002, 4), pcode.NewRegister(0x200, 1)),
		)
		Expect(inst.Category).To(Equal(CategoryNormal))
		Expect(inst.Target).To(BeZero())
	})

	It("should demote multiple control transfers to an indirect branch", func() {
		inst := resolve(0x1002,
			op(pcode.CBRANCH, nil, pcode.NewMemory(0x4000, 4), pcode.NewRegister(0x200, 1)),
			op(pcode.BRANCH, nil, pcode.NewMemory(0x5000, 4)),
		)
		Expect(inst.Category).To(Equal(CategoryIndirectBranch))
		Expect(inst.Target).To(BeZero())
	})

	It("should forget control flow on reset", func() {
		pcode.Ops{op(pcode.RETURN, nil, pcode.NewRegister(0x0, 4))}.Replay(fr)
		fr.Reset()
		inst := &Instruction{}
		fr.Resolve(0x1000, inst)
		Expect(inst.Category).To(Equal(CategoryNormal))
	})
})
