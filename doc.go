/*
Package engine runs a graph of processing units from an audio device
callback.

Concept

The engine is split between two threads. The control thread builds the
graph, opens the device and changes parameters. The real-time thread is
owned by the audio device: once per block it calls back into the engine,
which renders the graph straight into the device buffers.

The real-time thread never blocks and never allocates. Everything it
touches is allocated up front when the device is opened. Control messages
reach it through bounded single-producer single-consumer channels:

    graph.SetParam - a parameter change for a single node;
    Engine.Events - note and controller events for the next block;
    Engine.Transport - tempo, meter and play state.

Lifecycle

An engine moves between three states:

    Closed - no device is held;
    Open - the device is negotiated and the graph is prepared;
    Streaming - the device invokes the callback.

Open and Close move between Closed and Open, Start and Stop move between
Open and Streaming:

    g := graph.New()
    sine, _ := g.AddNode(nodes.NewSine(440), unit.Ports{Outputs: 1})
    gain, _ := g.AddNode(nodes.NewGain(0.5), unit.Ports{Inputs: 1, Outputs: 1})
    _ = g.Connect(sine, gain)

    e := engine.New(portaudio.Driver{}, g)
    if err := e.Open(engine.DeviceConfig{SampleRate: 48000, BlockSize: 256, Channels: 2}); err != nil {
        return err
    }
    defer e.Close()
    if err := e.Start(); err != nil {
        return err
    }
    defer e.Stop()

Drivers

Device drivers implement Driver. The driver binds a Trampoline to the
native callback and calls ProcessPlanar or ProcessInterleaved once per
block. Drivers are provided by portaudio and oto packages, mock offers a
driver with a manual clock for tests.
*/
package engine
