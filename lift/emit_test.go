package lift

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/mewmew/pcode/arch/x86"
	"github.com/mewmew/pcode/pcode"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Emitter", func() {
	var (
		m   *ir.Module
		dec *fakeDecoder
		e   *emitter
	)

	BeforeEach(func() {
		m = ir.NewModule()
		a := x86.New()
		a.PrepareModule(m)
		dec = newFakeDecoder(2)
		inst := &Instruction{Addr: 0x1000, Bytes: []byte{0x90, 0x90}, Valid: true, Category: CategoryNormal}
		e = newEmitter(a, dec, inst, newFunc(m, a, "insn"))
	})

	emit := func(ops ...*pcode.Op) Status {
		pcode.Ops(ops).Replay(e)
		e.finish()
		return e.status
	}

	storedConstants := func() []int64 {
		var xs []int64
		for _, store := range instsOf[*ir.InstStore](e.f) {
			if c, ok := store.Src.(*constant.Int); ok {
				xs = append(xs, c.X.Int64())
			}
		}
		return xs
	}

	// gprIndex returns the index of the general purpose register addressed by
	// v; or -1 if v does not address a general purpose register.
	gprIndex := func(v value.Value) int64 {
		gep, ok := v.(*ir.InstGetElementPtr)
		if !ok || len(gep.Indices) != 3 {
			return -1
		}
		c, ok := gep.Indices[2].(*constant.Int)
		if !ok {
			return -1
		}
		return c.X.Int64()
	}

	// outputValue returns the value written by the last store of the lift
	// basic block.
	outputValue := func() value.Value {
		var stores []*ir.InstStore
		for _, inst := range e.f.Blocks[1].Insts {
			if store, ok := inst.(*ir.InstStore); ok {
				stores = append(stores, store)
			}
		}
		Expect(stores).NotTo(BeEmpty())
		return stores[len(stores)-1].Src
	}

	Context("scratch space", func() {
		It("should resolve the same offset to the same slot", func() {
			x := e.resolve(pcode.NewScratch(0x10, 4))
			y := e.resolve(pcode.NewScratch(0x10, 4))
			z := e.resolve(pcode.NewScratch(0x20, 4))
			Expect(x).To(BeIdenticalTo(y))
			Expect(x).NotTo(BeIdenticalTo(z))
			Expect(x.ptr).NotTo(BeIdenticalTo(z.ptr))
		})

		It("should pool registers not present in the architecture", func() {
			x := e.resolve(pcode.NewRegister(0x300, 2))
			y := e.resolve(pcode.NewRegister(0x300, 2))
			z := e.resolve(pcode.NewRegister(0x300, 1))
			Expect(x).To(BeIdenticalTo(y))
			Expect(x).NotTo(BeIdenticalTo(z))
			Expect(x.typ).To(Equal(types.I16))
		})

		It("should allocate slots in the entry basic block", func() {
			p := e.resolve(pcode.NewScratch(0x10, 8))
			alloca, ok := p.ptr.(*ir.InstAlloca)
			Expect(ok).To(BeTrue())
			Expect(e.entry.Insts).To(ContainElement(BeIdenticalTo(alloca)))
		})
	})

	Context("operand resolution", func() {
		It("should resolve named registers to the CPU-state structure", func() {
			p := e.resolve(pcode.NewRegister(0x4, 4))
			Expect(p.kind).To(Equal(paramRegister))
			_, ok := p.ptr.(*ir.InstGetElementPtr)
			Expect(ok).To(BeTrue())
		})

		It("should resolve constants to literals of their size", func() {
			p := e.resolve(pcode.NewConstant(0xFF, 1))
			Expect(p.kind).To(Equal(paramConstant))
			_, ok := e.read(p, types.I8)
			Expect(ok).To(BeTrue())
			_, ok = e.read(p, types.I32)
			Expect(ok).To(BeFalse())
		})

		It("should panic on unknown storage spaces", func() {
			Expect(func() {
				e.resolve(pcode.Varnode{Space: pcode.Space(42), Offset: 0, Size: 4})
			}).To(Panic())
		})

		It("should reject writes to constants", func() {
			p := e.resolve(pcode.NewConstant(0, 4))
			Expect(e.write(p, constant.NewInt(types.I32, 1))).To(Equal(StatusUnsupported))
		})
	})

	Context("value substitution", func() {
		It("should substitute a claimed value exactly once", func() {
			e.applyEqualityClaim(pcode.NewConstant(0x10, 4), pcode.NewRegister(0x4, 4))
			v := e.resolveOrLiteral(pcode.NewConstant(0x10, 4), types.I32)
			_, ok := v.(*ir.InstLoad)
			Expect(ok).To(BeTrue())
			Expect(func() {
				e.resolveOrLiteral(pcode.NewConstant(0x10, 4), types.I32)
			}).To(Panic())
		})

		It("should leave other offsets literal", func() {
			e.applyEqualityClaim(pcode.NewConstant(0x10, 4), pcode.NewRegister(0x4, 4))
			v := e.resolveOrLiteral(pcode.NewConstant(0x20, 4), types.I32)
			c, ok := v.(*constant.Int)
			Expect(ok).To(BeTrue())
			Expect(c.X.Int64()).To(Equal(int64(0x20)))
		})

		It("should panic on claims of non-constant varnodes", func() {
			Expect(func() {
				e.applyEqualityClaim(pcode.NewRegister(0x0, 4), pcode.NewRegister(0x4, 4))
			}).To(Panic())
		})
	})

	It("should lift a copy followed by an addition", func() {
		eax := pcode.NewRegister(0x0, 4)
		status := emit(
			op(pcode.COPY, out(eax), pcode.NewConstant(5, 4)),
			op(pcode.INT_ADD, out(eax), eax, pcode.NewRegister(0x4, 4)),
		)
		Expect(status).To(Equal(StatusLifted))
		Expect(storedConstants()).To(ContainElement(int64(5)))
		var sums []*ir.InstAdd
		for _, add := range instsOf[*ir.InstAdd](e.f) {
			if _, ok := add.Y.(*ir.InstLoad); ok {
				sums = append(sums, add)
			}
		}
		Expect(sums).To(HaveLen(1))
		stored := false
		for _, store := range instsOf[*ir.InstStore](e.f) {
			if store.Src == sums[0] {
				_, stored = store.Dst.(*ir.InstGetElementPtr)
			}
		}
		Expect(stored).To(BeTrue())
	})

	It("should read claimed constants instead of their literal offset", func() {
		status := emit(
			op(pcode.CALLOTHER, nil, pcode.NewConstant(0, 4), pcode.NewConstant(0x10, 4), pcode.NewRegister(0x4, 4)),
			op(pcode.COPY, out(pcode.NewRegister(0x0, 4)), pcode.NewConstant(0x10, 4)),
		)
		Expect(status).To(Equal(StatusLifted))
		Expect(storedConstants()).NotTo(ContainElement(int64(0x10)))
		// EAX = load ECX
		copied := false
		for _, store := range instsOf[*ir.InstStore](e.f) {
			if gprIndex(store.Dst) != 0 {
				continue
			}
			if load, ok := store.Src.(*ir.InstLoad); ok && gprIndex(load.Src) == 1 {
				copied = true
			}
		}
		Expect(copied).To(BeTrue())
	})

	It("should panic on ambiguous value substitution", func() {
		Expect(func() {
			emit(
				op(pcode.CALLOTHER, nil, pcode.NewConstant(0, 4), pcode.NewConstant(0x10, 4), pcode.NewRegister(0x4, 4)),
				op(pcode.COPY, out(pcode.NewRegister(0x0, 4)), pcode.NewConstant(0x10, 4)),
				op(pcode.COPY, out(pcode.NewRegister(0x8, 4)), pcode.NewConstant(0x10, 4)),
			)
		}).To(Panic())
	})

	It("should not support other user-defined operations", func() {
		status := emit(
			op(pcode.CALLOTHER, nil, pcode.NewConstant(1, 4)),
		)
		Expect(status).To(Equal(StatusUnsupported))
	})

	It("should keep prior effects of partially unsupported instructions", func() {
		eax := pcode.NewRegister(0x0, 4)
		status := emit(
			op(pcode.COPY, out(eax), pcode.NewConstant(7, 4)),
			op(pcode.NEW, out(eax), pcode.NewConstant(0, 4), pcode.NewConstant(1, 4)),
			op(pcode.CPOOLREF, out(eax), pcode.NewConstant(0, 4), pcode.NewConstant(1, 4), pcode.NewConstant(2, 4)),
		)
		Expect(status).To(Equal(StatusUnsupported))
		Expect(storedConstants()).To(ContainElement(int64(7)))
	})

	It("should report writes of unsupported memory types as invalid", func() {
		status := emit(
			op(pcode.STORE, nil, pcode.NewConstant(0, 4), pcode.NewRegister(0x0, 4), pcode.NewScratch(0x10, 3)),
			op(pcode.NEW, out(pcode.NewRegister(0x0, 4)), pcode.NewConstant(0, 4), pcode.NewConstant(1, 4)),
		)
		Expect(status).To(Equal(StatusInvalid))
	})

	It("should reject writes to constant outputs", func() {
		status := emit(
			op(pcode.COPY, out(pcode.NewConstant(0, 4)), pcode.NewRegister(0x0, 4)),
		)
		Expect(status).To(Equal(StatusUnsupported))
	})

	It("should reject operations without required output", func() {
		status := emit(
			op(pcode.INT_ZEXT, nil, pcode.NewRegister(0x0, 4)),
		)
		Expect(status).To(Equal(StatusUnsupported))
	})

	It("should widen comparisons to one byte", func() {
		status := emit(
			op(pcode.INT_SLESS, out(pcode.NewScratch(0x10, 1)), pcode.NewRegister(0x0, 4), pcode.NewRegister(0x4, 4)),
		)
		Expect(status).To(Equal(StatusLifted))
		zexts := instsOf[*ir.InstZExt](e.f)
		Expect(zexts).To(HaveLen(1))
		Expect(zexts[0].To).To(Equal(types.I8))
	})

	It("should declare overflow intrinsics for carry", func() {
		status := emit(
			op(pcode.INT_CARRY, out(pcode.NewRegister(0x200, 1)), pcode.NewRegister(0x0, 4), pcode.NewRegister(0x4, 4)),
		)
		Expect(status).To(Equal(StatusLifted))
		Expect(instsOf[*ir.InstExtractValue](e.f)).To(HaveLen(1))
		var names []string
		for _, f := range m.Funcs {
			names = append(names, f.Name())
		}
		Expect(names).To(ContainElement("llvm.uadd.with.overflow.i32"))
	})

	It("should coerce shift amounts to the shifted operand", func() {
		status := emit(
			op(pcode.INT_LEFT, out(pcode.NewRegister(0x0, 4)), pcode.NewRegister(0x0, 4), pcode.NewConstant(3, 1)),
		)
		Expect(status).To(Equal(StatusLifted))
		shls := instsOf[*ir.InstShl](e.f)
		Expect(shls).To(HaveLen(1))
		Expect(shls[0].Y.Type()).To(Equal(types.I32))
	})

	It("should not support integer operations of mismatched widths", func() {
		status := emit(
			op(pcode.INT_ADD, out(pcode.NewRegister(0x0, 4)), pcode.NewRegister(0x0, 4), pcode.NewConstant(3, 1)),
		)
		Expect(status).To(Equal(StatusUnsupported))
	})

	It("should concatenate pieces", func() {
		status := emit(
			op(pcode.PIECE, out(pcode.NewScratch(0x10, 8)), pcode.NewRegister(0x8, 4), pcode.NewRegister(0x0, 4)),
		)
		Expect(status).To(Equal(StatusLifted))
		shls := instsOf[*ir.InstShl](e.f)
		Expect(shls).To(HaveLen(1))
		c, ok := shls[0].Y.(*constant.Int)
		Expect(ok).To(BeTrue())
		Expect(c.X.Int64()).To(Equal(int64(32)))
		Expect(instsOf[*ir.InstOr](e.f)).To(HaveLen(1))
	})

	It("should extract subpieces", func() {
		status := emit(
			op(pcode.SUBPIECE, out(pcode.NewScratch(0x10, 1)), pcode.NewRegister(0x0, 4), pcode.NewConstant(1, 4)),
		)
		Expect(status).To(Equal(StatusLifted))
		Expect(instsOf[*ir.InstLShr](e.f)).To(HaveLen(1))
		truncs := instsOf[*ir.InstTrunc](e.f)
		Expect(truncs).To(HaveLen(1))
		Expect(truncs[0].To).To(Equal(types.I8))
	})

	It("should select float types by size", func() {
		status := emit(
			op(pcode.FLOAT_ADD, out(pcode.NewScratch(0x10, 8)), pcode.NewScratch(0x20, 8), pcode.NewScratch(0x30, 8)),
			op(pcode.FLOAT_SQRT, out(pcode.NewScratch(0x40, 4)), pcode.NewScratch(0x50, 4)),
		)
		Expect(status).To(Equal(StatusLifted))
		fadds := instsOf[*ir.InstFAdd](e.f)
		Expect(fadds).To(HaveLen(1))
		Expect(fadds[0].Type()).To(Equal(types.Double))
		Expect(m.Funcs).To(ContainElement(WithTransform(func(f *ir.Func) string { return f.Name() }, Equal("llvm.sqrt.f32"))))
	})

	DescribeTable("lifts operations",
		func(o *pcode.Op, want ir.Instruction, typ types.Type) {
			Expect(emit(o)).To(Equal(StatusLifted))
			v := outputValue()
			Expect(v).To(BeAssignableToTypeOf(want))
			Expect(v.Type().Equal(typ)).To(BeTrue(), v.Type().String())
		},
		// Integer operations.
		Entry("INT_SEXT",
			op(pcode.INT_SEXT, out(pcode.NewScratch(0x10, 8)), pcode.NewRegister(0x0, 4)),
			&ir.InstSExt{}, types.I64),
		Entry("INT_ZEXT of equal size",
			op(pcode.INT_ZEXT, out(pcode.NewScratch(0x10, 4)), pcode.NewRegister(0x0, 4)),
			&ir.InstLoad{}, types.I32),
		Entry("INT_2COMP",
			op(pcode.INT_2COMP, out(pcode.NewRegister(0x0, 4)), pcode.NewRegister(0x4, 4)),
			&ir.InstSub{}, types.I32),
		Entry("INT_NEGATE",
			op(pcode.INT_NEGATE, out(pcode.NewRegister(0x0, 4)), pcode.NewRegister(0x4, 4)),
			&ir.InstXor{}, types.I32),
		Entry("INT_SBORROW",
			op(pcode.INT_SBORROW, out(pcode.NewRegister(0x20B, 1)), pcode.NewRegister(0x0, 4), pcode.NewRegister(0x4, 4)),
			&ir.InstZExt{}, types.I8),
		Entry("LZCOUNT",
			op(pcode.LZCOUNT, out(pcode.NewScratch(0x10, 4)), pcode.NewRegister(0x0, 4)),
			&ir.InstCall{}, types.I32),
		Entry("LZCOUNT into a narrower output",
			op(pcode.LZCOUNT, out(pcode.NewScratch(0x10, 1)), pcode.NewRegister(0x0, 4)),
			&ir.InstTrunc{}, types.I8),
		// Boolean operations.
		Entry("BOOL_NEGATE",
			op(pcode.BOOL_NEGATE, out(pcode.NewScratch(0x10, 1)), pcode.NewScratch(0x20, 1)),
			&ir.InstZExt{}, types.I8),
		Entry("BOOL_AND",
			op(pcode.BOOL_AND, out(pcode.NewScratch(0x10, 1)), pcode.NewScratch(0x20, 1), pcode.NewScratch(0x30, 1)),
			&ir.InstAnd{}, types.I8),
		// Floating-point operations.
		Entry("FLOAT_NEG",
			op(pcode.FLOAT_NEG, out(pcode.NewScratch(0x10, 4)), pcode.NewScratch(0x20, 4)),
			&ir.InstFNeg{}, types.Float),
		Entry("FLOAT_NAN",
			op(pcode.FLOAT_NAN, out(pcode.NewScratch(0x10, 1)), pcode.NewScratch(0x20, 8)),
			&ir.InstZExt{}, types.I8),
		Entry("FLOAT_LESS",
			op(pcode.FLOAT_LESS, out(pcode.NewScratch(0x10, 1)), pcode.NewScratch(0x20, 8), pcode.NewScratch(0x30, 8)),
			&ir.InstZExt{}, types.I8),
		Entry("FLOAT_INT2FLOAT",
			op(pcode.FLOAT_INT2FLOAT, out(pcode.NewScratch(0x10, 8)), pcode.NewRegister(0x0, 4)),
			&ir.InstSIToFP{}, types.Double),
		Entry("FLOAT_FLOAT2FLOAT widening",
			op(pcode.FLOAT_FLOAT2FLOAT, out(pcode.NewScratch(0x10, 8)), pcode.NewScratch(0x20, 4)),
			&ir.InstFPExt{}, types.Double),
		Entry("FLOAT_FLOAT2FLOAT narrowing",
			op(pcode.FLOAT_FLOAT2FLOAT, out(pcode.NewScratch(0x10, 4)), pcode.NewScratch(0x20, 8)),
			&ir.InstFPTrunc{}, types.Float),
		Entry("FLOAT_TRUNC",
			op(pcode.FLOAT_TRUNC, out(pcode.NewRegister(0x0, 4)), pcode.NewScratch(0x20, 8)),
			&ir.InstFPToSI{}, types.I32),
		// Pointer arithmetic and merges.
		Entry("PTRADD",
			op(pcode.PTRADD, out(pcode.NewScratch(0x10, 4)), pcode.NewRegister(0x0, 4), pcode.NewRegister(0x4, 4), pcode.NewConstant(4, 4)),
			&ir.InstAdd{}, types.I32),
		Entry("PTRSUB",
			op(pcode.PTRSUB, out(pcode.NewScratch(0x10, 4)), pcode.NewRegister(0x0, 4), pcode.NewConstant(8, 4)),
			&ir.InstAdd{}, types.I32),
		Entry("MULTIEQUAL",
			op(pcode.MULTIEQUAL, out(pcode.NewScratch(0x10, 4)), pcode.NewRegister(0x0, 4), pcode.NewRegister(0x4, 4)),
			&ir.InstPhi{}, types.I32),
	)

	It("should scale the index of pointer additions by the element size", func() {
		status := emit(
			op(pcode.PTRADD, out(pcode.NewScratch(0x10, 4)), pcode.NewRegister(0x0, 4), pcode.NewScratch(0x20, 2), pcode.NewConstant(4, 4)),
		)
		Expect(status).To(Equal(StatusLifted))
		muls := instsOf[*ir.InstMul](e.f)
		Expect(muls).To(HaveLen(1))
		_, ok := muls[0].X.(*ir.InstZExt)
		Expect(ok).To(BeTrue())
		c, ok := muls[0].Y.(*constant.Int)
		Expect(ok).To(BeTrue())
		Expect(c.X.Int64()).To(Equal(int64(4)))
	})

	It("should declare the leading zero count intrinsic", func() {
		status := emit(
			op(pcode.LZCOUNT, out(pcode.NewScratch(0x10, 4)), pcode.NewRegister(0x0, 4)),
		)
		Expect(status).To(Equal(StatusLifted))
		Expect(m.Funcs).To(ContainElement(WithTransform(func(f *ir.Func) string { return f.Name() }, Equal("llvm.ctlz.i32"))))
	})

	It("should merge every input of MULTIEQUAL", func() {
		status := emit(
			op(pcode.MULTIEQUAL, out(pcode.NewScratch(0x10, 4)), pcode.NewRegister(0x0, 4), pcode.NewRegister(0x4, 4), pcode.NewRegister(0x8, 4)),
		)
		Expect(status).To(Equal(StatusLifted))
		phis := instsOf[*ir.InstPhi](e.f)
		Expect(phis).To(HaveLen(1))
		Expect(phis[0].Incs).To(HaveLen(3))
	})

	It("should not narrow with extensions", func() {
		status := emit(
			op(pcode.INT_SEXT, out(pcode.NewScratch(0x10, 2)), pcode.NewRegister(0x0, 4)),
		)
		Expect(status).To(Equal(StatusUnsupported))
		Expect(instsOf[*ir.InstSExt](e.f)).To(BeEmpty())
	})

	Context("control flow", func() {
		It("should redirect branches through the program counter", func() {
			status := emit(
				op(pcode.BRANCH, nil, pcode.NewMemory(0x2000, 4)),
				op(pcode.COPY, out(pcode.NewRegister(0x0, 4)), pcode.NewConstant(1, 4)),
			)
			Expect(status).To(Equal(StatusLifted))
			Expect(blockNames(e.f)).To(Equal([]string{"entry", "lift", "continuation_1", "exit"}))
			Expect(storedConstants()).To(ContainElement(int64(0x2000)))
			br, ok := e.f.Blocks[1].Term.(*ir.TermBr)
			Expect(ok).To(BeTrue())
			Expect(br.Target).To(BeIdenticalTo(e.exit))
		})

		It("should not support internal control flow", func() {
			status := emit(
				op(pcode.BRANCH, nil, pcode.NewConstant(2, 4)),
			)
			Expect(status).To(Equal(StatusUnsupported))
			status = worse(StatusLifted, e.emitCBranch(pcode.NewConstant(2, 4), pcode.NewRegister(0x200, 1)))
			Expect(status).To(Equal(StatusUnsupported))
		})

		It("should split blocks on conditional branches", func() {
			e.inst.Category = CategoryDirectConditionalBranch
			e.inst.Target = 0x2000
			status := emit(
				op(pcode.CBRANCH, nil, pcode.NewMemory(0x2000, 4), pcode.NewRegister(0x0, 4)),
				op(pcode.COPY, out(pcode.NewRegister(0x0, 4)), pcode.NewConstant(1, 4)),
			)
			Expect(status).To(Equal(StatusLifted))
			Expect(blockNames(e.f)).To(Equal([]string{"entry", "lift", "continuation_1", "exit"}))
			condBr, ok := e.f.Blocks[1].Term.(*ir.TermCondBr)
			Expect(ok).To(BeTrue())
			Expect(condBr.TargetTrue).To(BeIdenticalTo(e.exit))
			Expect(condBr.TargetFalse).To(BeIdenticalTo(e.f.Blocks[2]))
			Expect(instsOf[*ir.InstSelect](e.f)).To(HaveLen(1))
			taken := false
			for _, store := range instsOf[*ir.InstStore](e.f) {
				if store.Dst == e.branchTaken && store.Src.Type().Equal(types.I8) {
					if _, ok := store.Src.(*ir.InstTrunc); ok {
						taken = true
					}
				}
			}
			Expect(taken).To(BeTrue())
		})

		It("should not split blocks on conditional branches to the next instruction", func() {
			status := emit(
				op(pcode.CBRANCH, nil, pcode.NewMemory(0x1002, 4), pcode.NewRegister(0x200, 1)),
			)
			Expect(status).To(Equal(StatusLifted))
			Expect(blockNames(e.f)).To(Equal([]string{"entry", "lift", "exit"}))
			Expect(instsOf[*ir.InstSelect](e.f)).To(BeEmpty())
		})

		It("should terminate every basic block", func() {
			emit(
				op(pcode.CBRANCH, nil, pcode.NewMemory(0x2000, 4), pcode.NewRegister(0x200, 1)),
				op(pcode.RETURN, nil, pcode.NewRegister(0x10, 4)),
			)
			for _, block := range e.f.Blocks {
				Expect(block.Term).NotTo(BeNil(), block.Name())
			}
			_, ok := e.exit.Term.(*ir.TermRet)
			Expect(ok).To(BeTrue())
		})
	})
})

var _ = Describe("literal", func() {
	It("should truncate to the bit size of the type", func() {
		Expect(literal(types.I8, 0x1FF).X.Int64()).To(Equal(int64(-1)))
		Expect(literal(types.I16, 0x1234).X.Int64()).To(Equal(int64(0x1234)))
		Expect(literal(types.I64, 0xFFFFFFFFFFFFFFFF).X.Int64()).To(Equal(int64(-1)))
		Expect(literal(types.I128, 0xFFFFFFFFFFFFFFFF).X.Uint64()).To(Equal(uint64(0xFFFFFFFFFFFFFFFF)))
	})
})
