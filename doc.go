/*
computer-vision-tracking reconstructs the people moving through a room from a
small number of fixed, calibrated cameras.

Every camera contributes a foreground silhouette per frame.  A regular voxel
grid covering the working volume is pre-projected into every camera once, so
that per frame only the pixels whose silhouette changed need to be visited to
keep the set of voxels seen as foreground by all cameras up to date.  The
visible voxels are then clustered on the ground plane and each cluster is given
a stable person identity by comparing colour histograms against reference
models captured per camera.

The root package only holds the worker pool and CPU affinity helpers shared by
the subpackages.  See the camera, voxel, cluster, colormodel and pipeline
packages for the reconstruction itself and the example subdirectory for
runnable programs.
*/
package tracking
