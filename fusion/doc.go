// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package fusion trains two small regressors on different arithmetic tasks,
// averages their weights into a third and tests the blend on a task neither
// was trained on.
//
// # Overview
//
// Network A (2→16→1, ReLU, Adam, MSE) learns a+b and network B learns a·b
// over a,b ∈ [0,9]. After every epoch their parameters are averaged
// element-wise into network C, which is scored on a/b with b ∈ [1,9].
// Accuracy is the share of predictions within 0.5 of the target.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/weightfusion/backend/cpu"
//	    "github.com/born-ml/weightfusion/fusion"
//	)
//
//	func main() {
//	    cfg := fusion.DefaultConfig()
//	    session := fusion.NewSession(cpu.New(), cfg)
//	    defer session.Close()
//
//	    for ev := range fusion.Run(ctx, session, cfg) {
//	        if ev.Done {
//	            break
//	        }
//	        fmt.Println(ev.Epoch, ev.Merged.Accuracy)
//	    }
//	}
//
// # Controller
//
// A Controller runs at most one session at a time and fans its events out
// to subscribers. It is the entry point for interactive shells.
//
// # Diagrams
//
// A Renderer draws a snapshot's nodes and strongest connections; a View
// redraws on every prop change, or continuously with a decorative node
// animation while training runs.
package fusion
